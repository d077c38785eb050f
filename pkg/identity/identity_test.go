package identity_test

import (
	"errors"
	"os"
	"testing"

	"github.com/benmeehan/ups-bridge/internal/mocks"
	"github.com/benmeehan/ups-bridge/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestDeviceInfo_LoadDeviceInfo_Defaults(t *testing.T) {
	mockFileClient := new(mocks.FileOperations)
	mockFileClient.On("ReadJsonFile", "device.json", mock.Anything).Return(os.ErrNotExist)

	d := identity.NewDeviceInfo("device.json", mockFileClient)
	err := d.LoadDeviceInfo()

	assert.NoError(t, err)
	assert.Equal(t, "home-ups", d.GetDeviceID())
	assert.Equal(t, "home_ups", d.GetUniqueIDBase())
	assert.Equal(t, "Home UPS", d.GetDeviceIdentity().Name)
	assert.Equal(t, "V-Guard", d.GetDeviceIdentity().Manufacturer)
	assert.Equal(t, "SOLSMART 1450", d.GetDeviceIdentity().Model)
	mockFileClient.AssertExpectations(t)
}

func TestDeviceInfo_LoadDeviceInfo_FromFile(t *testing.T) {
	mockFileClient := new(mocks.FileOperations)
	mockFileClient.On("ReadJsonFile", "device.json", mock.Anything).
		Run(func(args mock.Arguments) {
			id := args.Get(1).(*identity.Identity)
			id.ID = "Garage-UPS"
			id.Name = "Garage UPS"
		}).
		Return(nil)

	d := identity.NewDeviceInfo("device.json", mockFileClient)
	assert.NoError(t, d.LoadDeviceInfo())

	assert.Equal(t, "Garage-UPS", d.GetDeviceID())
	assert.Equal(t, "garage_ups", d.GetUniqueIDBase())
	assert.Equal(t, "Garage UPS", d.GetDeviceIdentity().Name)
	assert.Equal(t, "V-Guard", d.GetDeviceIdentity().Manufacturer)
}

func TestDeviceInfo_LoadDeviceInfo_ReadError(t *testing.T) {
	mockFileClient := new(mocks.FileOperations)
	mockFileClient.On("ReadJsonFile", "device.json", mock.Anything).Return(errors.New("permission denied"))

	d := identity.NewDeviceInfo("device.json", mockFileClient)
	assert.Error(t, d.LoadDeviceInfo())
}
