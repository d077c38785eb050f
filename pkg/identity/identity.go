package identity

import (
	"os"
	"strings"

	"github.com/benmeehan/ups-bridge/pkg/file"
)

// Defaults used when no identity file is present.
const (
	DefaultID           = "home-ups"
	DefaultName         = "Home UPS"
	DefaultManufacturer = "V-Guard"
	DefaultModel        = "SOLSMART 1450"
)

// Identity holds the bridged device's identifier and descriptive metadata.
type Identity struct {
	ID           string `json:"device_id,omitempty"`
	Name         string `json:"device_name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
}

// DeviceInfoInterface defines methods for reading device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetDeviceID() string
	GetDeviceIdentity() *Identity
	GetUniqueIDBase() string
}

// DeviceInfo manages the device identity and its associated file operations.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) *DeviceInfo {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
		Identity:       Identity{},
	}
}

// LoadDeviceInfo reads the device information from the file and fills any
// empty field with its default.
func (d *DeviceInfo) LoadDeviceInfo() error {
	if d.DeviceInfoFile != "" {
		err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	if d.Identity.ID == "" {
		d.Identity.ID = DefaultID
	}
	if d.Identity.Name == "" {
		d.Identity.Name = DefaultName
	}
	if d.Identity.Manufacturer == "" {
		d.Identity.Manufacturer = DefaultManufacturer
	}
	if d.Identity.Model == "" {
		d.Identity.Model = DefaultModel
	}

	return nil
}

// GetDeviceIdentity returns the current device Identity.
func (d *DeviceInfo) GetDeviceIdentity() *Identity {
	return &d.Identity
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}

// GetUniqueIDBase returns the device ID in unique_id form: "home-ups" becomes "home_ups".
func (d *DeviceInfo) GetUniqueIDBase() string {
	return strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(d.Identity.ID))
}
