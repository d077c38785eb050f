package ble

import (
	"context"
	"errors"
)

// GATT characteristics used by the inverter.
const (
	WriteCharacteristicUUID  = "0003cdd2-0000-1000-8000-00805f9b0131"
	NotifyCharacteristicUUID = "0003cdd1-0000-1000-8000-00805f9b0131"
)

// ErrNotConnected is returned by session operations after the link dropped.
var ErrNotConnected = errors.New("ble: not connected")

// NotificationHandler receives notification payloads. It may be called from a
// transport goroutine and must not retain data after returning.
type NotificationHandler func(data []byte)

// Transport opens sessions to a device.
type Transport interface {
	Connect(ctx context.Context, address string) (Session, error)
}

// Session is one open connection to a device.
type Session interface {
	Subscribe(characteristic string, handler NotificationHandler) error
	Write(characteristic string, data []byte) error
	Unsubscribe(characteristic string) error
	Disconnect() error
	IsConnected() bool
}
