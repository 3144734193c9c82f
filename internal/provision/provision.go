// Package provision implements the credential exchange protocol carried
// over the radio's read/write characteristics: obfuscated JSON credential
// payloads, the erase and reset commands, and the SSID list projection.
package provision

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"wifi-bridge/internal/obfuscate"
	"wifi-bridge/internal/store"
	"wifi-bridge/internal/system"
	"wifi-bridge/internal/wifi"
)

// Config holds the timing and size limits for the SSID list provider.
type Config struct {
	// StaleAfter is the age beyond which cached scan results trigger a
	// rescan on a list read.
	StaleAfter time.Duration
	// PollInterval and PollAttempts bound how long a list read waits for a
	// non-empty scan.
	PollInterval time.Duration
	PollAttempts int
	// ListLimit caps the number of SSIDs served.
	ListLimit int
}

// DefaultConfig returns the protocol's standard timings.
func DefaultConfig() Config {
	return Config{
		StaleAfter:   10 * time.Second,
		PollInterval: 500 * time.Millisecond,
		PollAttempts: 20,
		ListLimit:    10,
	}
}

// Handler serves the credential characteristic's read and write sides and
// the network list characteristic's read side.
type Handler struct {
	cfg       Config
	store     *store.Store
	scanner   *wifi.Scanner
	station   wifi.Station
	restarter system.Restarter
	key       string // device name, also the obfuscation key
	logger    *logrus.Entry
}

// NewHandler wires the exchange protocol to its collaborators. key must be
// the non-empty device name.
func NewHandler(
	cfg Config,
	st *store.Store,
	scanner *wifi.Scanner,
	station wifi.Station,
	restarter system.Restarter,
	key string,
	logger *logrus.Logger,
) *Handler {
	if key == "" {
		panic("provision: empty obfuscation key")
	}
	return &Handler{
		cfg:       cfg,
		store:     st,
		scanner:   scanner,
		station:   station,
		restarter: restarter,
		key:       key,
		logger:    logger.WithField("component", "provision"),
	}
}

// credentialsPayload is the on-wire shape of the credential object. Field
// order matters to nothing but readability; the companion app keys by name.
type credentialsPayload struct {
	SSIDPrim string `json:"ssidPrim"`
	PwPrim   string `json:"pwPrim"`
	SSIDSec  string `json:"ssidSec"`
	PwSec    string `json:"pwSec"`
}

// HandleWrite processes one write to the credential characteristic. Empty
// payloads are ignored. Recognized commands are dispatched first-match-wins:
// a full credential set, then erase, then reset. Malformed payloads are
// logged and discarded without touching state.
func (h *Handler) HandleWrite(payload []byte) {
	if len(payload) == 0 {
		return
	}

	decoded := obfuscate.Transform(payload, h.key)

	var msg map[string]interface{}
	if err := json.Unmarshal(decoded, &msg); err != nil {
		h.logger.WithError(err).Warn("Received invalid JSON")
		return
	}

	switch {
	case hasKeys(msg, "ssidPrim", "pwPrim", "ssidSec", "pwSec"):
		h.setCredentials(msg)
	case hasKeys(msg, "erase"):
		h.erase()
	case hasKeys(msg, "reset"):
		h.reset()
	default:
		// Valid structure, nothing recognized.
	}
}

func (h *Handler) setCredentials(msg map[string]interface{}) {
	creds := store.Credentials{
		SSIDPrim: stringField(msg, "ssidPrim"),
		PwPrim:   stringField(msg, "pwPrim"),
		SSIDSec:  stringField(msg, "ssidSec"),
		PwSec:    stringField(msg, "pwSec"),
	}

	if err := h.store.SetCredentials(creds); err != nil {
		h.logger.WithError(err).Error("Failed to persist credentials")
	}
	h.logger.WithFields(logrus.Fields{
		"ssid_prim": creds.SSIDPrim,
		"ssid_sec":  creds.SSIDSec,
	}).Info("Received credentials over BLE")
}

// erase clears the in-memory credentials and then makes two independent
// best-effort calls: removing the persisted record and re-initializing the
// underlying storage. A failure in either is logged and does not undo the
// in-memory clear.
func (h *Handler) erase() {
	h.logger.Info("Received erase command")
	h.store.ClearCredentials()

	if err := h.store.Erase(); err != nil {
		h.logger.WithError(err).Error("Failed to erase persisted credentials")
	}
	if err := h.store.Wipe(); err != nil {
		h.logger.WithError(err).Error("Failed to wipe storage")
	}
}

// reset disconnects from the network and restarts the device. It does not
// return on real hardware.
func (h *Handler) reset() {
	h.logger.Warn("Received reset command")
	if err := h.station.Disconnect(); err != nil {
		h.logger.WithError(err).Error("Disconnect before restart failed")
	}
	if err := h.restarter.Restart(); err != nil {
		h.logger.WithError(err).Error("Restart failed")
	}
}

// HandleRead builds the obfuscated projection of the current credentials
// for the credential characteristic. It never mutates state.
func (h *Handler) HandleRead() []byte {
	creds, _ := h.store.Credentials()
	out, err := json.Marshal(credentialsPayload{
		SSIDPrim: creds.SSIDPrim,
		PwPrim:   creds.PwPrim,
		SSIDSec:  creds.SSIDSec,
		PwSec:    creds.PwSec,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode credentials")
		return nil
	}
	return obfuscate.Transform(out, h.key)
}

// listPayload is the network list characteristic's value.
type listPayload struct {
	SSID []string `json:"SSID"`
}

// HandleListRead serves the network list characteristic. If no scan results
// are cached and the last scan is stale, it triggers a rescan and waits, in
// bounded fixed increments, for a non-empty result; an empty list is served
// if none arrives. Only encrypted networks are listed, capped at the
// configured limit, unobfuscated.
func (h *Handler) HandleListRead(ctx context.Context) []byte {
poll:
	for attempt := 0; h.scanner.Count() == 0 && attempt < h.cfg.PollAttempts; attempt++ {
		if _, at := h.scanner.Snapshot(); time.Since(at) > h.cfg.StaleAfter {
			if _, err := h.scanner.Refresh(ctx); err != nil {
				h.logger.WithError(err).Warn("Rescan for list read failed")
			}
		}
		select {
		case <-ctx.Done():
			break poll
		case <-time.After(h.cfg.PollInterval):
		}
	}

	networks, _ := h.scanner.Snapshot()
	ssids := []string{}
	for _, n := range networks {
		if !n.Encrypted {
			// Open networks are deliberately not advertised.
			continue
		}
		ssids = append(ssids, n.SSID)
		if len(ssids) >= h.cfg.ListLimit {
			break
		}
	}

	out, err := json.Marshal(listPayload{SSID: ssids})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode SSID list")
		return nil
	}
	h.logger.WithField("count", len(ssids)).Debug("Serving SSID list")
	return out
}

func hasKeys(msg map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if _, ok := msg[k]; !ok {
			return false
		}
	}
	return true
}

func stringField(msg map[string]interface{}, key string) string {
	if v, ok := msg[key].(string); ok {
		return v
	}
	return ""
}
