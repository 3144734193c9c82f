package ble

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// LinuxPeripheral implements Peripheral on top of BlueZ.
type LinuxPeripheral struct {
	mu        sync.Mutex
	cfg       Config
	logger    *logrus.Entry
	adapter   *bluetooth.Adapter
	adv       *bluetooth.Advertisement
	advActive bool
	attached  bool

	charCredentials bluetooth.Characteristic
	charList        bluetooth.Characteristic
	charStatus      bluetooth.Characteristic
	statusValue     [2]byte
}

var _ Peripheral = (*LinuxPeripheral)(nil)

// NewLinuxPeripheral enables the default adapter and registers the
// provisioning service and its three characteristics.
func NewLinuxPeripheral(ctx context.Context, cfg Config, logger *logrus.Logger) (*LinuxPeripheral, error) {
	p := &LinuxPeripheral{
		cfg:     cfg,
		logger:  logger.WithField("component", "ble"),
		adapter: bluetooth.DefaultAdapter,
	}

	if err := p.adapter.Enable(); err != nil {
		return nil, errors.WithMessage(err, "failed to enable bluetooth adapter")
	}

	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return nil, errors.WithMessage(err, "bad service UUID")
	}
	credUUID, err := bluetooth.ParseUUID(CredentialsUUID)
	if err != nil {
		return nil, errors.WithMessage(err, "bad credentials UUID")
	}
	listUUID, err := bluetooth.ParseUUID(ListUUID)
	if err != nil {
		return nil, errors.WithMessage(err, "bad list UUID")
	}
	statusUUID, err := bluetooth.ParseUUID(StatusUUID)
	if err != nil {
		return nil, errors.WithMessage(err, "bad status UUID")
	}

	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		p.handleConnection(ctx, connected)
	})

	service := &bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &p.charCredentials,
				UUID:   credUUID,
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicWritePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					p.cfg.OnCredentialWrite(value)
					// Refresh the readable projection after every write.
					if v := p.cfg.CredentialValue(); v != nil {
						if _, err := p.charCredentials.Write(v); err != nil {
							p.logger.WithError(err).Warn("Failed to refresh credential value")
						}
					}
				},
			},
			{
				Handle: &p.charList,
				UUID:   listUUID,
				Flags:  bluetooth.CharacteristicReadPermission,
			},
			{
				Handle: &p.charStatus,
				UUID:   statusUUID,
				Flags:  bluetooth.CharacteristicNotifyPermission,
			},
		},
	}
	if err := p.adapter.AddService(service); err != nil {
		return nil, errors.WithMessage(err, "failed to register GATT service")
	}

	adv := p.adapter.DefaultAdvertisement()
	if adv == nil {
		return nil, errors.New("advertisement unavailable")
	}
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    cfg.Name,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	}); err != nil {
		return nil, errors.WithMessage(err, "failed to configure advertisement")
	}
	p.adv = adv

	p.logger.WithField("name", cfg.Name).Info("BLE service registered")
	return p, nil
}

// handleConnection tracks client attach/detach. On attach the list and
// credential values are refreshed in the background (BlueZ serves reads
// from the stored value, and building the list may block on a scan); on
// detach advertising is restarted so the next client can find the device.
func (p *LinuxPeripheral) handleConnection(ctx context.Context, connected bool) {
	p.mu.Lock()
	p.attached = connected
	p.mu.Unlock()

	if connected {
		p.logger.Info("BLE client connected")
		go p.refreshValues(ctx)
		return
	}

	p.logger.Info("BLE client disconnected")
	if err := p.StartAdvertising(ctx); err != nil {
		p.logger.WithError(err).Error("Failed to restart advertising")
	}
}

func (p *LinuxPeripheral) refreshValues(ctx context.Context) {
	if v := p.cfg.CredentialValue(); v != nil {
		if _, err := p.charCredentials.Write(v); err != nil {
			p.logger.WithError(err).Warn("Failed to set credential value")
		}
	}
	if v := p.cfg.ListValue(ctx); v != nil {
		if _, err := p.charList.Write(v); err != nil {
			p.logger.WithError(err).Warn("Failed to set list value")
		}
	}
}

func (p *LinuxPeripheral) StartAdvertising(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.advActive {
		return nil
	}
	if err := p.adv.Start(); err != nil {
		return errors.WithMessage(err, "failed to start advertising")
	}
	p.advActive = true
	return nil
}

func (p *LinuxPeripheral) StopAdvertising() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.advActive {
		return nil
	}
	if err := p.adv.Stop(); err != nil {
		return errors.WithMessage(err, "failed to stop advertising")
	}
	p.advActive = false
	return nil
}

func (p *LinuxPeripheral) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// NotifyEnabled reports whether a status push can reach a client. BlueZ
// tracks the CCCD state internally and drops writes with no subscriber, so
// an attached client is the observable gate here.
func (p *LinuxPeripheral) NotifyEnabled() bool {
	return p.Attached()
}

func (p *LinuxPeripheral) SetStatus(v uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	binary.LittleEndian.PutUint16(p.statusValue[:], v)
}

func (p *LinuxPeripheral) PushStatus() error {
	p.mu.Lock()
	value := p.statusValue
	p.mu.Unlock()

	if _, err := p.charStatus.Write(value[:]); err != nil {
		return errors.WithMessage(err, "failed to notify status")
	}
	return nil
}
