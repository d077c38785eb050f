//go:build linux

package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// GoBLETransport implements Transport on top of the host HCI device.
type GoBLETransport struct {
	logger zerolog.Logger
}

// NewGoBLETransport opens the default HCI device and installs it for go-ble.
func NewGoBLETransport(logger zerolog.Logger) (*GoBLETransport, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, errors.Wrap(err, "open hci device")
	}
	goble.SetDefaultDevice(dev)

	return &GoBLETransport{logger: logger}, nil
}

// Connect dials address and discovers the GATT profile.
func (t *GoBLETransport) Connect(ctx context.Context, address string) (Session, error) {
	client, err := goble.Dial(ctx, goble.NewAddr(strings.ToLower(address)))
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", address)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, errors.Wrap(err, "discover profile")
	}

	t.logger.Debug().Str("address", address).Int("services", len(profile.Services)).Msg("GATT profile discovered")

	return &goBLESession{client: client, profile: profile}, nil
}

var (
	_ Transport = (*GoBLETransport)(nil)
	_ Session   = (*goBLESession)(nil)
)

type goBLESession struct {
	client  goble.Client
	profile *goble.Profile

	mu     sync.Mutex
	closed bool
}

func (s *goBLESession) characteristic(id string) (*goble.Characteristic, error) {
	u, err := goble.Parse(id)
	if err != nil {
		return nil, errors.Wrapf(err, "parse uuid %s", id)
	}
	c := s.profile.FindCharacteristic(goble.NewCharacteristic(u))
	if c == nil {
		return nil, fmt.Errorf("characteristic %s not found", id)
	}
	return c, nil
}

func (s *goBLESession) Subscribe(characteristic string, handler NotificationHandler) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	c, err := s.characteristic(characteristic)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.Subscribe(c, false, func(req []byte) { handler(req) }), "subscribe")
}

func (s *goBLESession) Write(characteristic string, data []byte) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	c, err := s.characteristic(characteristic)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.WriteCharacteristic(c, data, true), "write")
}

func (s *goBLESession) Unsubscribe(characteristic string) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	c, err := s.characteristic(characteristic)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.Unsubscribe(c, false), "unsubscribe")
}

func (s *goBLESession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Wrap(s.client.CancelConnection(), "cancel connection")
}

func (s *goBLESession) IsConnected() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	select {
	case <-s.client.Disconnected():
		return false
	default:
		return true
	}
}
