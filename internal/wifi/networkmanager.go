package wifi

import (
	"context"
	"net"
	"sync"
	"time"

	gonm "github.com/Wifx/gonetworkmanager"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// linkPollPeriod is how often the NetworkManager station polls the device
// state to synthesize link up/down events.
const linkPollPeriod = time.Second

// NMStation is a Station backed by NetworkManager over D-Bus.
type NMStation struct {
	mu          sync.Mutex
	nm          gonm.NetworkManager
	device      gonm.Device
	wireless    gonm.DeviceWireless
	logger      *logrus.Entry
	scanWait    time.Duration
	linkUp      func(ssid string)
	linkDown    func()
	lastState   gonm.NmDeviceState
	stopPolling chan struct{}
}

var _ Station = (*NMStation)(nil)

// NewNMStation locates the first wireless device known to NetworkManager
// and starts watching its link state. scanWait bounds the active scan
// duration.
func NewNMStation(logger *logrus.Logger, scanWait time.Duration) (*NMStation, error) {
	nm, err := gonm.NewNetworkManager()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to connect to NetworkManager")
	}

	devices, err := nm.GetPropertyAllDevices()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to list network devices")
	}

	for _, d := range devices {
		devType, err := d.GetPropertyDeviceType()
		if err != nil {
			continue
		}
		if devType != gonm.NmDeviceTypeWifi {
			continue
		}
		wireless, err := gonm.NewDeviceWireless(d.GetPath())
		if err != nil {
			return nil, errors.WithMessage(err, "failed to open wireless device")
		}
		s := &NMStation{
			nm:          nm,
			device:      d,
			wireless:    wireless,
			logger:      logger.WithField("component", "wifi"),
			scanWait:    scanWait,
			stopPolling: make(chan struct{}),
		}
		go s.pollLinkState()
		return s, nil
	}
	return nil, errors.New("no wireless device found")
}

// Close stops the link-state watcher.
func (s *NMStation) Close() {
	close(s.stopPolling)
}

// HardwareAddr returns the MAC address of the wireless interface, used to
// derive the device name.
func (s *NMStation) HardwareAddr() (net.HardwareAddr, error) {
	name, err := s.device.GetPropertyInterface()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to read interface name")
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to look up interface %s", name)
	}
	return iface.HardwareAddr, nil
}

func (s *NMStation) Scan(ctx context.Context) ([]Network, error) {
	// Tear down any current link first so the radio is free to scan.
	_ = s.Disconnect()

	if err := s.wireless.RequestScan(); err != nil {
		return nil, errors.WithMessage(err, "scan request failed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.scanWait):
	}

	aps, err := s.wireless.GetPropertyAccessPoints()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to read scan results")
	}

	networks := make([]Network, 0, len(aps))
	for _, ap := range aps {
		ssid, err := ap.GetPropertySSID()
		if err != nil || ssid == "" {
			continue
		}
		strength, err := ap.GetPropertyStrength()
		if err != nil {
			continue
		}
		flags, _ := ap.GetPropertyFlags()
		wpaFlags, _ := ap.GetPropertyWPAFlags()
		rsnFlags, _ := ap.GetPropertyRSNFlags()

		encrypted := flags&0x1 != 0 || wpaFlags != 0 || rsnFlags != 0
		networks = append(networks, Network{
			SSID:      ssid,
			RSSI:      strengthToRSSI(strength),
			Encrypted: encrypted,
			AuthMode:  authModeFromFlags(flags, wpaFlags, rsnFlags),
		})
	}
	return networks, nil
}

func (s *NMStation) Connect(ctx context.Context, ssid, password string) error {
	aps, err := s.wireless.GetPropertyAccessPoints()
	if err != nil {
		return errors.WithMessage(err, "failed to list access points")
	}

	var target gonm.AccessPoint
	for _, ap := range aps {
		apSSID, err := ap.GetPropertySSID()
		if err == nil && apSSID == ssid {
			target = ap
			break
		}
	}
	if target == nil {
		return errors.Errorf("access point %q not visible", ssid)
	}

	settings := map[string]map[string]interface{}{
		"connection": {
			"id":   ssid,
			"type": "802-11-wireless",
		},
		"802-11-wireless": {
			"security": "802-11-wireless-security",
		},
		"802-11-wireless-security": {
			"key-mgmt": "wpa-psk",
			"psk":      password,
		},
	}
	if _, err := s.nm.AddAndActivateWirelessConnection(settings, s.device, target); err != nil {
		return errors.WithMessagef(err, "failed to activate connection to %q", ssid)
	}
	return nil
}

func (s *NMStation) Disconnect() error {
	return s.device.Disconnect()
}

func (s *NMStation) CurrentSSID() (string, error) {
	ap, err := s.wireless.GetPropertyActiveAccessPoint()
	if err != nil || ap == nil {
		return "", nil
	}
	return ap.GetPropertySSID()
}

func (s *NMStation) CurrentRSSI() (int, error) {
	ap, err := s.wireless.GetPropertyActiveAccessPoint()
	if err != nil || ap == nil {
		return 0, nil
	}
	strength, err := ap.GetPropertyStrength()
	if err != nil {
		return 0, err
	}
	return strengthToRSSI(strength), nil
}

func (s *NMStation) OnLinkUp(fn func(ssid string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkUp = fn
}

func (s *NMStation) OnLinkDown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkDown = fn
}

// pollLinkState synthesizes link up/down callbacks from device state
// transitions. NetworkManager state signals are delivered over D-Bus; a
// short poll keeps the adapter free of signal-subscription plumbing.
func (s *NMStation) pollLinkState() {
	ticker := time.NewTicker(linkPollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPolling:
			return
		case <-ticker.C:
		}

		state, err := s.device.GetPropertyState()
		if err != nil {
			continue
		}

		s.mu.Lock()
		prev := s.lastState
		s.lastState = state
		up := s.linkUp
		down := s.linkDown
		s.mu.Unlock()

		if state == prev {
			continue
		}
		switch {
		case state == gonm.NmDeviceStateActivated:
			ssid, _ := s.CurrentSSID()
			if up != nil {
				up(ssid)
			}
		case prev == gonm.NmDeviceStateActivated:
			if down != nil {
				down()
			}
		}
	}
}

// strengthToRSSI converts NetworkManager's 0-100 strength percentage to an
// approximate dBm value.
func strengthToRSSI(strength uint8) int {
	return int(strength)/2 - 100
}

func authModeFromFlags(flags, wpaFlags, rsnFlags uint32) string {
	switch {
	case rsnFlags != 0 && wpaFlags != 0:
		return AuthModeName(4) // WPA_WPA2_PSK
	case rsnFlags != 0:
		return AuthModeName(3) // WPA2_PSK
	case wpaFlags != 0:
		return AuthModeName(2) // WPA_PSK
	case flags&0x1 != 0:
		return AuthModeName(1) // WEP
	default:
		return AuthModeName(0) // open
	}
}
