package models

// Availability mirrors the last known connectivity of the device.
type Availability int

const (
	Offline Availability = iota
	Online
)

// Payload returns the retained MQTT payload for a.
func (a Availability) Payload() string {
	if a == Online {
		return "online"
	}
	return "offline"
}

func (a Availability) String() string {
	return a.Payload()
}
