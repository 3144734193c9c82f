package wifi

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArbitrate(t *testing.T) {
	tests := []struct {
		name           string
		networks       []Network
		wantFound      bool
		wantUsePrimary bool
	}{
		{
			name:      "neither network visible",
			networks:  []Network{{SSID: "Neighbor", RSSI: -30}},
			wantFound: false,
		},
		{
			name:           "only primary visible",
			networks:       []Network{{SSID: "Home", RSSI: -55}},
			wantFound:      true,
			wantUsePrimary: true,
		},
		{
			name:           "only secondary visible",
			networks:       []Network{{SSID: "Office", RSSI: -55}},
			wantFound:      true,
			wantUsePrimary: false,
		},
		{
			name: "both visible, primary stronger",
			networks: []Network{
				{SSID: "Home", RSSI: -40},
				{SSID: "Office", RSSI: -60},
			},
			wantFound:      true,
			wantUsePrimary: true,
		},
		{
			name: "both visible, secondary stronger",
			networks: []Network{
				{SSID: "Home", RSSI: -70},
				{SSID: "Office", RSSI: -50},
			},
			wantFound:      true,
			wantUsePrimary: false,
		},
		{
			name: "equal strength favors secondary",
			networks: []Network{
				{SSID: "Home", RSSI: -50},
				{SSID: "Office", RSSI: -50},
			},
			wantFound:      true,
			wantUsePrimary: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulator()
			sim.SetNetworks(tt.networks)
			scanner := NewScanner(sim, logrus.New())

			found := scanner.Arbitrate(context.Background(), "Home", "Office")
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.wantUsePrimary, scanner.UsePrimary())
			}
		})
	}
}

func TestArbitrate_ScanError(t *testing.T) {
	sim := NewSimulator()
	sim.SetScanError(errors.New("radio busy"))
	scanner := NewScanner(sim, logrus.New())

	assert.False(t, scanner.Arbitrate(context.Background(), "Home", "Office"))
}

func TestScanner_RefreshCachesResults(t *testing.T) {
	sim := NewSimulator()
	sim.SetNetworks([]Network{
		{SSID: "Home", RSSI: -40, Encrypted: true},
		{SSID: "Cafe", RSSI: -80},
	})
	scanner := NewScanner(sim, logrus.New())

	assert.Equal(t, 0, scanner.Count())

	n, err := scanner.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, scanner.Count())

	networks, at := scanner.Snapshot()
	assert.Len(t, networks, 2)
	assert.False(t, at.IsZero())
}

func TestAuthModeName(t *testing.T) {
	assert.Equal(t, "open", AuthModeName(0))
	assert.Equal(t, "WPA2_PSK", AuthModeName(3))
	assert.Equal(t, "unknown", AuthModeName(42))
	assert.Equal(t, "unknown", AuthModeName(-1))
}
