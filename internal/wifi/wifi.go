// Package wifi abstracts the station-mode network stack and implements the
// arbitration that decides which of the two configured networks to join.
package wifi

import "context"

// Network is one access point discovered by a scan.
type Network struct {
	SSID      string
	RSSI      int // dBm
	Encrypted bool
	AuthMode  string
}

// Station is the station-mode side of the wireless stack. Connect is
// asynchronous: the outcome is reported through the link callbacks, not the
// return value. Scan blocks for the duration of the scan.
type Station interface {
	// Scan tears down any current link, forces station mode and performs a
	// bounded active scan, returning fresh results.
	Scan(ctx context.Context) ([]Network, error)

	// Connect initiates a connection attempt. The immediate result only
	// indicates whether the attempt was started.
	Connect(ctx context.Context, ssid, password string) error

	// Disconnect requests a clean teardown of the current link.
	Disconnect() error

	// CurrentSSID returns the SSID of the active link, or "" if none.
	CurrentSSID() (string, error)

	// CurrentRSSI returns the signal strength of the active link in dBm.
	CurrentRSSI() (int, error)

	// OnLinkUp registers the callback invoked when an IP is acquired.
	OnLinkUp(func(ssid string))

	// OnLinkDown registers the callback invoked when the link is lost.
	OnLinkDown(func())
}

// authModes maps IEEE 802.11 auth mode indices to display names, for scan
// logging.
var authModes = []string{"open", "WEP", "WPA_PSK", "WPA2_PSK", "WPA_WPA2_PSK", "WPA2_ENTERPRISE", "MAX"}

// AuthModeName returns a display name for an auth mode index.
func AuthModeName(mode int) string {
	if mode < 0 || mode >= len(authModes) {
		return "unknown"
	}
	return authModes[mode]
}
