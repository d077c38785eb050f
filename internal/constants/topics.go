package constants

const (
	DefaultTopicPrefix     = "home/ups"
	DefaultDiscoveryPrefix = "homeassistant"

	AvailabilitySuffix = "status"
	AvailabilityName   = "UPS Availability"

	StateClassMeasurement   = "measurement"
	DeviceClassConnectivity = "connectivity"

	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
)
