//go:build !linux

package ble

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// GoBLETransport is only available on Linux, where go-ble drives the HCI socket.
type GoBLETransport struct{}

// NewGoBLETransport always fails on this platform.
func NewGoBLETransport(_ zerolog.Logger) (*GoBLETransport, error) {
	return nil, errors.New("ble: HCI transport is only supported on linux")
}

// Connect is never reachable because the constructor fails.
func (t *GoBLETransport) Connect(_ context.Context, _ string) (Session, error) {
	return nil, errors.New("ble: HCI transport is only supported on linux")
}
