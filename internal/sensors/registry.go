package sensors

import (
	"errors"
	"fmt"
)

// Definition describes one measurement the device can report.
type Definition struct {
	Prefix      Prefix
	Name        string  // unique, human readable; topic key material
	Divisor     float64 // raw value is divided by this
	Unit        string
	DeviceClass string // Home Assistant device_class
}

// Registry is the immutable prefix to definition table. Safe for concurrent reads.
type Registry struct {
	order  []Prefix
	byCode map[Prefix]Definition
}

// New builds a registry from defs. The slice order becomes the poll order.
func New(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, errors.New("sensor registry: at least one definition required")
	}

	r := &Registry{
		order:  make([]Prefix, 0, len(defs)),
		byCode: make(map[Prefix]Definition, len(defs)),
	}
	names := make(map[string]Prefix, len(defs))

	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("sensor registry: prefix %s has no name", d.Prefix)
		}
		if d.Divisor <= 0 {
			return nil, fmt.Errorf("sensor registry: %q divisor must be > 0, got %v", d.Name, d.Divisor)
		}
		if existing, ok := r.byCode[d.Prefix]; ok {
			return nil, fmt.Errorf("sensor registry: prefix %s registered twice (%q, %q)", d.Prefix, existing.Name, d.Name)
		}
		if other, ok := names[d.Name]; ok {
			return nil, fmt.Errorf("sensor registry: name %q used by %s and %s", d.Name, other, d.Prefix)
		}

		names[d.Name] = d.Prefix
		r.byCode[d.Prefix] = d
		r.order = append(r.order, d.Prefix)
	}

	return r, nil
}

// Lookup returns the definition registered for p.
func (r *Registry) Lookup(p Prefix) (Definition, bool) {
	d, ok := r.byCode[p]
	return d, ok
}

// Prefixes returns the prefixes in poll order.
func (r *Registry) Prefixes() []Prefix {
	out := make([]Prefix, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns the definitions in poll order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.byCode[p])
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.order)
}
