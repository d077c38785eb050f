package poller

import (
	"time"

	"github.com/benmeehan/ups-bridge/internal/codec"
	"github.com/benmeehan/ups-bridge/internal/sensors"
	"github.com/benmeehan/ups-bridge/internal/utils"
)

// Aggregator accumulates decoded responses for a single cycle.
// Not safe for concurrent use; the cycle goroutine is its only writer.
type Aggregator struct {
	registry *sensors.Registry
	current  Snapshot
	now      func() time.Time
}

// NewAggregator returns an aggregator with an empty snapshot.
func NewAggregator(registry *sensors.Registry) *Aggregator {
	a := &Aggregator{registry: registry, now: time.Now}
	a.current = newSnapshot(a.now())
	return a
}

// StartCycle discards anything accumulated and returns the new empty snapshot.
func (a *Aggregator) StartCycle() Snapshot {
	a.current = newSnapshot(a.now())
	return a.current
}

// Record stores a decoded response. A later response for the same name
// replaces the earlier one. Unknown responses are ignored.
func (a *Aggregator) Record(res codec.Response) {
	if !res.Known {
		return
	}
	a.current.Measurements[res.Name] = Measurement{Name: res.Name, Value: res.Value, Raw: res.Raw}
}

// FinishCycle returns the accumulated snapshot and resets to an empty one.
func (a *Aggregator) FinishCycle() Snapshot {
	done := a.current
	a.current = newSnapshot(a.now())
	return done
}

// Missing lists registry names absent from s, in poll order.
func (a *Aggregator) Missing(s Snapshot) []string {
	have := utils.SliceToSet(s.Names())

	var missing []string
	for _, def := range a.registry.Definitions() {
		if _, ok := have[def.Name]; !ok {
			missing = append(missing, def.Name)
		}
	}
	return missing
}
