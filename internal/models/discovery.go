package models

// DiscoveryDevice is the Home Assistant device block shared by every entity of the bridge.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// SensorDiscovery is the retained config published for one measurement.
type SensorDiscovery struct {
	Name              string          `json:"name"`
	StateTopic        string          `json:"state_topic"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class"`
	UniqueID          string          `json:"unique_id"`
	AvailabilityTopic string          `json:"availability_topic,omitempty"`
	Device            DiscoveryDevice `json:"device"`
}

// BinarySensorDiscovery is the retained config for the availability signal.
type BinarySensorDiscovery struct {
	Name        string          `json:"name"`
	StateTopic  string          `json:"state_topic"`
	PayloadOn   string          `json:"payload_on"`
	PayloadOff  string          `json:"payload_off"`
	DeviceClass string          `json:"device_class"`
	UniqueID    string          `json:"unique_id"`
	Device      DiscoveryDevice `json:"device"`
}
