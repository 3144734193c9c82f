// Package ble exposes the bridge's GATT service: a read/write credential
// characteristic, a read-only network list characteristic and a notify-only
// status characteristic.
package ble

import "context"

// Peripheral is the radio-facing surface the bridge drives. Characteristic
// reads and writes arrive through the callbacks in Config; the status side
// is pushed from the notifier.
type Peripheral interface {
	// StartAdvertising begins advertising the provisioning service under
	// the device name.
	StartAdvertising(ctx context.Context) error

	// StopAdvertising stops the advertisement.
	StopAdvertising() error

	// Attached reports whether a client is currently connected.
	Attached() bool

	// NotifyEnabled reports whether the attached client has enabled
	// notifications on the status characteristic.
	NotifyEnabled() bool

	// SetStatus updates the status characteristic's 2-byte value.
	SetStatus(v uint16)

	// PushStatus sends the current status value to the subscribed client.
	PushStatus() error
}

// Config wires characteristic traffic to the exchange protocol.
type Config struct {
	// Name is the advertised device name.
	Name string

	// OnCredentialWrite receives raw writes to the credential
	// characteristic.
	OnCredentialWrite func(payload []byte)

	// CredentialValue produces the credential characteristic's current
	// read value.
	CredentialValue func() []byte

	// ListValue produces the network list characteristic's value. It may
	// block while a scan completes.
	ListValue func(ctx context.Context) []byte
}
