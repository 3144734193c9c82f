package ble

import (
	"context"
	"encoding/binary"
	"sync"
)

// FakePeripheral is an in-memory Peripheral with full subscription
// semantics, used in tests and when running without a radio.
type FakePeripheral struct {
	mu          sync.Mutex
	advertising bool
	attached    bool
	subscribed  bool
	statusValue uint16
	pushed      []uint16
}

var _ Peripheral = (*FakePeripheral)(nil)

// NewFakePeripheral returns a FakePeripheral with no client attached.
func NewFakePeripheral() *FakePeripheral {
	return &FakePeripheral{}
}

func (p *FakePeripheral) StartAdvertising(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advertising = true
	return nil
}

func (p *FakePeripheral) StopAdvertising() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advertising = false
	return nil
}

func (p *FakePeripheral) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

func (p *FakePeripheral) NotifyEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribed
}

func (p *FakePeripheral) SetStatus(v uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusValue = v
}

func (p *FakePeripheral) PushStatus() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, p.statusValue)
	return nil
}

// Attach simulates a client connecting; subscribe controls whether it
// enables notifications on the status characteristic.
func (p *FakePeripheral) Attach(subscribe bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = true
	p.subscribed = subscribe
}

// Detach simulates the client disconnecting.
func (p *FakePeripheral) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = false
	p.subscribed = false
}

// SetSubscribed flips the notification descriptor.
func (p *FakePeripheral) SetSubscribed(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribed = on
}

// Pushed returns every status value notified so far.
func (p *FakePeripheral) Pushed() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint16, len(p.pushed))
	copy(out, p.pushed)
	return out
}

// StatusBytes returns the current characteristic value as it would appear
// on the wire.
func (p *FakePeripheral) StatusBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], p.statusValue)
	return b[:]
}
