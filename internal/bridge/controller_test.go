package bridge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifi-bridge/internal/ble"
	"wifi-bridge/internal/store"
	"wifi-bridge/internal/wifi"
)

var testCreds = store.Credentials{
	SSIDPrim: "Home",
	PwPrim:   "secret1",
	SSIDSec:  "Office",
	PwSec:    "secret2",
}

type fixture struct {
	ctrl       *Controller
	store      *store.Store
	sim        *wifi.Simulator
	peripheral *ble.FakePeripheral
}

func newFixture(t *testing.T, persisted bool) *fixture {
	t.Helper()
	logger := logrus.New()

	st, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if persisted {
		require.NoError(t, st.SetCredentials(testCreds))
		st.ClearStatusChanged()
	}

	sim := wifi.NewSimulator()
	peripheral := ble.NewFakePeripheral()
	ctrl := NewController(
		st,
		wifi.NewScanner(sim, logger),
		sim,
		peripheral,
		logger,
		WithNotifyPeriod(5*time.Millisecond),
		WithPollPeriod(5*time.Millisecond),
		WithConnectWait(50*time.Millisecond),
	)

	return &fixture{ctrl: ctrl, store: st, sim: sim, peripheral: peripheral}
}

func startController(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.ctrl.Start(context.Background()))
	t.Cleanup(f.ctrl.Stop)
}

func TestController_StartupConnectsToPreferredNetwork(t *testing.T) {
	f := newFixture(t, true)
	f.sim.SetNetworks([]wifi.Network{
		{SSID: "Home", RSSI: -40, Encrypted: true},
		{SSID: "Office", RSSI: -60, Encrypted: true},
	})

	startController(t, f)

	assert.Eventually(t, func() bool {
		ssid, pw, n := f.sim.LastConnect()
		return n == 1 && ssid == "Home" && pw == "secret1"
	}, time.Second, 5*time.Millisecond)
}

func TestController_StartupTieFavorsSecondary(t *testing.T) {
	f := newFixture(t, true)
	f.sim.SetNetworks([]wifi.Network{
		{SSID: "Home", RSSI: -50, Encrypted: true},
		{SSID: "Office", RSSI: -50, Encrypted: true},
	})

	startController(t, f)

	assert.Eventually(t, func() bool {
		ssid, _, n := f.sim.LastConnect()
		return n == 1 && ssid == "Office"
	}, time.Second, 5*time.Millisecond)
}

func TestController_NoVisibleNetworkNoConnect(t *testing.T) {
	f := newFixture(t, true)
	f.sim.SetNetworks([]wifi.Network{{SSID: "Neighbor", RSSI: -30}})

	startController(t, f)

	time.Sleep(50 * time.Millisecond)
	_, _, n := f.sim.LastConnect()
	assert.Equal(t, 0, n)
	// No retry is scheduled without an external trigger.
	assert.False(t, f.store.StatusChanged())
}

func TestController_LinkUpSecondaryPublishesStatus2(t *testing.T) {
	f := newFixture(t, true)
	f.sim.SetNetworks([]wifi.Network{{SSID: "Office", RSSI: -55, Encrypted: true}})
	startController(t, f)

	f.peripheral.Attach(true)
	f.sim.TriggerLinkUp("Office", -55)

	assert.Equal(t, StatusConnectedSecondary, f.ctrl.Status())
	assert.Eventually(t, func() bool {
		pushed := f.peripheral.Pushed()
		return len(pushed) > 0 && pushed[len(pushed)-1] == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{2, 0}, f.peripheral.StatusBytes())
}

func TestController_LinkLostTriggersReconnect(t *testing.T) {
	f := newFixture(t, true)
	f.sim.SetNetworks([]wifi.Network{{SSID: "Home", RSSI: -45, Encrypted: true}})
	startController(t, f)

	assert.Eventually(t, func() bool {
		_, _, n := f.sim.LastConnect()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	f.sim.TriggerLinkUp("Home", -45)
	assert.Equal(t, StatusConnectedPrimary, f.ctrl.Status())

	f.sim.TriggerLinkDown()
	assert.Equal(t, StatusDisconnected, f.ctrl.Status())

	// The main loop notices the change and reconnects.
	assert.Eventually(t, func() bool {
		_, _, n := f.sim.LastConnect()
		return n == 2
	}, time.Second, 5*time.Millisecond)
}

func TestController_NotifierRequiresSubscription(t *testing.T) {
	f := newFixture(t, false)
	startController(t, f)

	f.peripheral.Attach(false)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.peripheral.Pushed())

	f.peripheral.SetSubscribed(true)
	assert.Eventually(t, func() bool {
		return len(f.peripheral.Pushed()) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestController_NotifierIgnoresDetachedClient(t *testing.T) {
	f := newFixture(t, false)
	startController(t, f)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.peripheral.Pushed())
}

func TestController_Snapshot(t *testing.T) {
	f := newFixture(t, true)
	f.sim.SetNetworks([]wifi.Network{{SSID: "Home", RSSI: -45, Encrypted: true}})
	startController(t, f)

	f.sim.TriggerLinkUp("Home", -45)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, "connected_primary", snap.State)
	assert.Equal(t, uint16(1), snap.Status)
	assert.Equal(t, "Home", snap.SSID)
	assert.True(t, snap.CredentialsSet)
	assert.False(t, snap.PeerAttached)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "no_credentials", StateNoCredentials.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "unknown", State(99).String())
}
