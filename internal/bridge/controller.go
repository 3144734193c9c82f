// Package bridge drives the connection state machine: it consumes the
// status-changed signal raised by the radio callbacks and link events,
// arbitrates between the two configured networks, issues connect attempts
// and publishes the connection status to the BLE client.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wifi-bridge/internal/ble"
	"wifi-bridge/internal/store"
	"wifi-bridge/internal/wifi"
)

// ConnectionStatus is the 2-byte value published on the status
// characteristic.
type ConnectionStatus uint16

const (
	StatusDisconnected       ConnectionStatus = 0
	StatusConnectedPrimary   ConnectionStatus = 1
	StatusConnectedSecondary ConnectionStatus = 2
)

// State is the connection state machine's current state.
type State int

const (
	StateNoCredentials State = iota
	StateIdle
	StateConnecting
	StateConnectedPrimary
	StateConnectedSecondary
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNoCredentials:
		return "no_credentials"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnectedPrimary:
		return "connected_primary"
	case StateConnectedSecondary:
		return "connected_secondary"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Controller owns the state machine, the main poll loop and the status
// notifier. The status value is guarded by its own mutex; everything else
// shared with the radio callbacks goes through the store.
type Controller struct {
	mu        sync.Mutex
	status    ConnectionStatus
	state     State
	connected bool

	store      *store.Store
	scanner    *wifi.Scanner
	station    wifi.Station
	peripheral ble.Peripheral
	logger     *logrus.Entry

	notifyPeriod time.Duration
	pollPeriod   time.Duration
	connectWait  time.Duration

	startTime time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifyPeriod overrides the status notification cadence.
func WithNotifyPeriod(d time.Duration) Option {
	return func(c *Controller) { c.notifyPeriod = d }
}

// WithPollPeriod overrides the main loop's poll interval.
func WithPollPeriod(d time.Duration) Option {
	return func(c *Controller) { c.pollPeriod = d }
}

// WithConnectWait overrides the bound on a connect call's immediate result.
func WithConnectWait(d time.Duration) Option {
	return func(c *Controller) { c.connectWait = d }
}

// NewController wires the state machine to its collaborators.
func NewController(
	st *store.Store,
	scanner *wifi.Scanner,
	station wifi.Station,
	peripheral ble.Peripheral,
	logger *logrus.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		store:        st,
		scanner:      scanner,
		station:      station,
		peripheral:   peripheral,
		logger:       logger.WithField("component", "bridge"),
		state:        StateNoCredentials,
		notifyPeriod: time.Second,
		pollPeriod:   250 * time.Millisecond,
		connectWait:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start loads persisted credentials, hooks the link events, launches the
// notifier and the main loop, and makes the initial connection attempt if
// credentials are available.
func (c *Controller) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.startTime = time.Now()

	c.station.OnLinkUp(c.handleLinkUp)
	c.station.OnLinkDown(c.handleLinkDown)

	creds, valid, err := c.store.Load()
	if err != nil {
		return err
	}
	if valid {
		c.setState(StateIdle)
		c.logger.WithFields(logrus.Fields{
			"ssid_prim": creds.SSIDPrim,
			"ssid_sec":  creds.SSIDSec,
		}).Info("Loaded persisted credentials")
	}

	c.wg.Add(2)
	go c.notifyLoop(ctx)
	go c.run(ctx, valid)
	return nil
}

// Stop shuts down the background loops.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// run is the main control loop: an initial connection attempt when
// credentials were persisted, then a cooperative poll of the
// status-changed signal.
func (c *Controller) run(ctx context.Context, haveCredentials bool) {
	defer c.wg.Done()

	if haveCredentials {
		if creds, ok := c.store.Credentials(); ok {
			c.arbitrateAndConnect(ctx, creds)
		}
	}

	ticker := time.NewTicker(c.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !c.store.StatusChanged() {
			continue
		}

		c.mu.Lock()
		connected := c.connected
		c.mu.Unlock()

		if connected {
			c.logConnection()
		} else if creds, ok := c.store.Credentials(); ok {
			c.logger.Info("Lost WiFi connection")
			c.arbitrateAndConnect(ctx, creds)
		}
		// Cleared regardless of outcome; a failed reconnect waits for the
		// next external trigger.
		c.store.ClearStatusChanged()
	}
}

// arbitrateAndConnect runs one arbitration pass and, if a configured
// network is visible, fires a connect attempt at the preferred one. The
// attempt's outcome is observed only through the link events.
func (c *Controller) arbitrateAndConnect(ctx context.Context, creds store.Credentials) {
	if !c.scanner.Arbitrate(ctx, creds.SSIDPrim, creds.SSIDSec) {
		c.logger.Warn("Could not find any configured AP")
		return
	}

	ssid, password := creds.SSIDSec, creds.PwSec
	if c.scanner.UsePrimary() {
		ssid, password = creds.SSIDPrim, creds.PwPrim
	}
	c.setState(StateConnecting)
	c.logger.WithField("ssid", ssid).Info("Start connection to AP")

	cctx, cancel := context.WithTimeout(ctx, c.connectWait)
	defer cancel()
	if err := c.station.Connect(cctx, ssid, password); err != nil {
		// Logged only; final success or failure arrives via link events.
		c.logger.WithError(err).WithField("ssid", ssid).Error("Connect attempt failed to start")
	}
}

// handleLinkUp runs in the station stack's callback context when an IP is
// acquired. The connected SSID decides which configured network is active.
func (c *Controller) handleLinkUp(ssid string) {
	creds, _ := c.store.Credentials()

	c.mu.Lock()
	c.connected = true
	switch ssid {
	case creds.SSIDPrim:
		c.status = StatusConnectedPrimary
		c.state = StateConnectedPrimary
	case creds.SSIDSec:
		c.status = StatusConnectedSecondary
		c.state = StateConnectedSecondary
	}
	c.mu.Unlock()

	c.store.SetStatusChanged()
}

// handleLinkDown runs in the station stack's callback context when the
// link is lost.
func (c *Controller) handleLinkDown() {
	c.mu.Lock()
	c.connected = false
	c.status = StatusDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	c.store.SetStatusChanged()
}

func (c *Controller) logConnection() {
	ssid, _ := c.station.CurrentSSID()
	rssi, _ := c.station.CurrentRSSI()

	c.mu.Lock()
	status := c.status
	c.mu.Unlock()

	network := "secondary"
	if status == StatusConnectedPrimary {
		network = "primary"
	}
	c.logger.WithFields(logrus.Fields{
		"ssid":    ssid,
		"rssi":    rssi,
		"network": network,
	}).Info("Connected to AP")
}

// notifyLoop pushes the connection status to an attached, subscribed
// client on a fixed cadence.
func (c *Controller) notifyLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.notifyPeriod)
	defer ticker.Stop()

	notifying := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !c.peripheral.Attached() {
			continue
		}

		c.mu.Lock()
		v := uint16(c.status)
		c.mu.Unlock()
		c.peripheral.SetStatus(v)

		if c.peripheral.NotifyEnabled() {
			if err := c.peripheral.PushStatus(); err != nil {
				c.logger.WithError(err).Warn("Status notification failed")
				continue
			}
			if !notifying {
				c.logger.Info("Started notification service")
				notifying = true
			}
		} else if notifying {
			c.logger.Info("Notifications disabled by client")
			notifying = false
		}
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Status returns the current published connection status.
func (c *Controller) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Snapshot is a point-in-time view of the bridge for the diagnostic API.
type Snapshot struct {
	State          string        `json:"state"`
	Status         uint16        `json:"status"`
	SSID           string        `json:"ssid,omitempty"`
	RSSI           int           `json:"rssi,omitempty"`
	PeerAttached   bool          `json:"peer_attached"`
	CredentialsSet bool          `json:"credentials_set"`
	Uptime         time.Duration `json:"uptime_ns"`
}

// Snapshot reports the current state for the diagnostic API.
func (c *Controller) Snapshot() Snapshot {
	ssid, _ := c.station.CurrentSSID()
	rssi, _ := c.station.CurrentRSSI()
	_, available := c.store.Credentials()

	c.mu.Lock()
	state := c.state
	status := c.status
	c.mu.Unlock()

	return Snapshot{
		State:          state.String(),
		Status:         uint16(status),
		SSID:           ssid,
		RSSI:           rssi,
		PeerAttached:   c.peripheral.Attached(),
		CredentialsSet: available,
		Uptime:         time.Since(c.startTime),
	}
}
