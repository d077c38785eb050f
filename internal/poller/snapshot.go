package poller

import (
	"sort"
	"time"
)

// Measurement is one scaled reading.
type Measurement struct {
	Name  string
	Value float64
	Raw   uint16
}

// Snapshot holds the measurements collected during one poll cycle.
type Snapshot struct {
	StartedAt    time.Time
	Measurements map[string]Measurement
}

func newSnapshot(at time.Time) Snapshot {
	return Snapshot{StartedAt: at, Measurements: make(map[string]Measurement)}
}

// Len returns the number of measurements.
func (s Snapshot) Len() int {
	return len(s.Measurements)
}

// Get returns the measurement for name.
func (s Snapshot) Get(name string) (Measurement, bool) {
	m, ok := s.Measurements[name]
	return m, ok
}

// Names returns the measurement names, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Measurements))
	for name := range s.Measurements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
