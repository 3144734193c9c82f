package wifi

import (
	"context"
	"sync"
)

// Simulator is a scripted Station used in tests and when running without
// wireless hardware.
type Simulator struct {
	mu           sync.Mutex
	networks     []Network
	scanErr      error
	currentSSID  string
	currentRSSI  int
	connectSSID  string
	connectPw    string
	connectCount int
	disconnects  int
	linkUp       func(ssid string)
	linkDown     func()
}

var _ Station = (*Simulator)(nil)

// NewSimulator returns a Simulator with no visible networks.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// SetNetworks replaces the networks returned by subsequent scans.
func (s *Simulator) SetNetworks(networks []Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks = networks
}

// SetScanError makes subsequent scans fail with err.
func (s *Simulator) SetScanError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanErr = err
}

func (s *Simulator) Scan(ctx context.Context) ([]Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	out := make([]Network, len(s.networks))
	copy(out, s.networks)
	return out, nil
}

func (s *Simulator) Connect(ctx context.Context, ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectSSID = ssid
	s.connectPw = password
	s.connectCount++
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	s.currentSSID = ""
	return nil
}

func (s *Simulator) CurrentSSID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSSID, nil
}

func (s *Simulator) CurrentRSSI() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRSSI, nil
}

func (s *Simulator) OnLinkUp(fn func(ssid string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkUp = fn
}

func (s *Simulator) OnLinkDown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkDown = fn
}

// TriggerLinkUp simulates an IP-acquired event for ssid.
func (s *Simulator) TriggerLinkUp(ssid string, rssi int) {
	s.mu.Lock()
	s.currentSSID = ssid
	s.currentRSSI = rssi
	fn := s.linkUp
	s.mu.Unlock()
	if fn != nil {
		fn(ssid)
	}
}

// TriggerLinkDown simulates a link-lost event.
func (s *Simulator) TriggerLinkDown() {
	s.mu.Lock()
	s.currentSSID = ""
	fn := s.linkDown
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// LastConnect returns the SSID and password of the most recent connect
// attempt and how many attempts were made.
func (s *Simulator) LastConnect() (string, string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectSSID, s.connectPw, s.connectCount
}

// Disconnects returns the number of Disconnect calls.
func (s *Simulator) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}
