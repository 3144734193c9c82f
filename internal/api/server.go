// Package api serves a small read-only diagnostic HTTP surface: the
// current connection state and the last scan snapshot. It does not
// participate in provisioning.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"wifi-bridge/internal/bridge"
	"wifi-bridge/internal/wifi"
)

// StatusProvider reports the bridge's current state.
type StatusProvider interface {
	Snapshot() bridge.Snapshot
}

// Server is the diagnostic HTTP server.
type Server struct {
	logger     *logrus.Entry
	router     *mux.Router
	httpServer *http.Server
	bridge     StatusProvider
	scanner    *wifi.Scanner
}

// NewServer builds the diagnostic server listening on addr.
func NewServer(addr string, b StatusProvider, scanner *wifi.Scanner, logger *logrus.Logger) *Server {
	s := &Server{
		logger:  logger.WithField("component", "api"),
		router:  mux.NewRouter(),
		bridge:  b,
		scanner: scanner,
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/networks", s.handleNetworks).Methods(http.MethodGet)
	s.router.Use(s.logRequests)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("Diagnostic API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Diagnostic API failed")
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.bridge.Snapshot())
}

type networksResponse struct {
	ScannedAt time.Time      `json:"scanned_at"`
	Networks  []wifi.Network `json:"networks"`
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	networks, at := s.scanner.Snapshot()
	if networks == nil {
		networks = []wifi.Network{}
	}
	s.writeJSON(w, networksResponse{ScannedAt: at, Networks: networks})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}
