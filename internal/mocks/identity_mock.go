package mocks

import (
	"github.com/benmeehan/ups-bridge/pkg/identity"
	"github.com/stretchr/testify/mock"
)

// DeviceInfoInterface is a mock implementation of identity.DeviceInfoInterface
type DeviceInfoInterface struct {
	mock.Mock
}

func (m *DeviceInfoInterface) LoadDeviceInfo() error {
	args := m.Called()
	return args.Error(0)
}

func (m *DeviceInfoInterface) GetDeviceID() string {
	args := m.Called()
	return args.String(0)
}

func (m *DeviceInfoInterface) GetDeviceIdentity() *identity.Identity {
	args := m.Called()
	return args.Get(0).(*identity.Identity)
}

func (m *DeviceInfoInterface) GetUniqueIDBase() string {
	args := m.Called()
	return args.String(0)
}
