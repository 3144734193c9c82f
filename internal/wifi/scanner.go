package wifi

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scanner caches the most recent scan results and runs network arbitration
// over them. It is safe for use from the radio callback context and the
// main loop concurrently.
type Scanner struct {
	mu         sync.Mutex
	station    Station
	logger     *logrus.Entry
	last       []Network
	lastScanAt time.Time
	usePrimary bool
}

// NewScanner returns a Scanner over the given station stack.
func NewScanner(station Station, logger *logrus.Logger) *Scanner {
	return &Scanner{
		station:    station,
		logger:     logger.WithField("component", "scanner"),
		usePrimary: true,
	}
}

// Refresh performs a fresh scan and replaces the cached results. It returns
// the number of networks found.
func (s *Scanner) Refresh(ctx context.Context) (int, error) {
	s.logger.Info("Start scanning for networks")

	results, err := s.station.Scan(ctx)
	scannedAt := time.Now()
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		s.logger.Warn("Scan found no networks")
	}

	s.mu.Lock()
	s.last = results
	s.lastScanAt = scannedAt
	s.mu.Unlock()
	return len(results), nil
}

// Snapshot returns a copy of the cached scan results and the time they were
// taken.
func (s *Scanner) Snapshot() ([]Network, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Network, len(s.last))
	copy(out, s.last)
	return out, s.lastScanAt
}

// Count returns the number of cached scan results.
func (s *Scanner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}

// UsePrimary reports the selector decided by the last arbitration pass.
func (s *Scanner) UsePrimary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usePrimary
}

// Arbitrate scans for the two configured networks and decides which one to
// prefer. It returns true if at least one of them is visible. With both
// visible the one with strictly greater signal strength wins; on a tie the
// secondary network is selected.
func (s *Scanner) Arbitrate(ctx context.Context, ssidPrim, ssidSec string) bool {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.WithError(err).Error("Scan failed during arbitration")
		return false
	}

	networks, _ := s.Snapshot()

	var rssiPrim, rssiSec int
	foundAP := 0
	foundPrim := false

	for _, n := range networks {
		s.logger.WithFields(logrus.Fields{
			"ssid":       n.SSID,
			"rssi":       n.RSSI,
			"encryption": n.AuthMode,
		}).Debug("Found AP")
		if n.SSID == ssidPrim {
			s.logger.Debug("Found primary AP")
			foundAP++
			foundPrim = true
			rssiPrim = n.RSSI
		}
		if n.SSID == ssidSec {
			s.logger.Debug("Found secondary AP")
			foundAP++
			rssiSec = n.RSSI
		}
	}

	usePrimary := false
	switch foundAP {
	case 0:
		return false
	case 1:
		usePrimary = foundPrim
	default:
		s.logger.WithFields(logrus.Fields{
			"rssi_prim": rssiPrim,
			"rssi_sec":  rssiSec,
		}).Info("Both networks visible")
		// Only a strictly better primary wins; a tie falls through to the
		// secondary network.
		usePrimary = rssiPrim > rssiSec
	}

	s.mu.Lock()
	s.usePrimary = usePrimary
	s.mu.Unlock()
	return true
}
