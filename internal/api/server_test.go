package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifi-bridge/internal/bridge"
	"wifi-bridge/internal/wifi"
)

type fixedStatus struct {
	snap bridge.Snapshot
}

func (f fixedStatus) Snapshot() bridge.Snapshot {
	return f.snap
}

func newTestServer(t *testing.T, snap bridge.Snapshot, networks []wifi.Network) *Server {
	t.Helper()
	logger := logrus.New()
	sim := wifi.NewSimulator()
	sim.SetNetworks(networks)
	scanner := wifi.NewScanner(sim, logger)
	if len(networks) > 0 {
		_, err := scanner.Refresh(context.Background())
		require.NoError(t, err)
	}
	return NewServer("127.0.0.1:0", fixedStatus{snap}, scanner, logger)
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t, bridge.Snapshot{
		State:          "connected_primary",
		Status:         1,
		SSID:           "Home",
		RSSI:           -42,
		CredentialsSet: true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got bridge.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "connected_primary", got.State)
	assert.Equal(t, uint16(1), got.Status)
	assert.Equal(t, "Home", got.SSID)
}

func TestHandleNetworks(t *testing.T) {
	s := newTestServer(t, bridge.Snapshot{}, []wifi.Network{
		{SSID: "Home", RSSI: -40, Encrypted: true, AuthMode: "WPA2_PSK"},
		{SSID: "Cafe", RSSI: -80, Encrypted: false, AuthMode: "open"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/networks", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got networksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Networks, 2)
	assert.False(t, got.ScannedAt.IsZero())
}

func TestHandleNetworks_EmptyScan(t *testing.T) {
	s := newTestServer(t, bridge.Snapshot{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/networks", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"networks":[]`)
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t, bridge.Snapshot{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
