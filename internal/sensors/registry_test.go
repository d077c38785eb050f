package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrefix(t *testing.T) {
	p, err := ParsePrefix("ffffff080c01")
	require.NoError(t, err)
	assert.Equal(t, Prefix{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01}, p)
	assert.Equal(t, "FFFFFF080C01", p.String())

	_, err = ParsePrefix("FFFF")
	assert.Error(t, err)

	_, err = ParsePrefix("zzzzzzzzzzzz")
	assert.Error(t, err)
}

func TestPrefixFromBytes(t *testing.T) {
	p, ok := PrefixFromBytes([]byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0x64, 0x00})
	assert.True(t, ok)
	assert.Equal(t, MustParsePrefix("FFFFFF080C01"), p)

	_, ok = PrefixFromBytes([]byte{0xFF, 0xFF})
	assert.False(t, ok)
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, 6, r.Len())

	d, ok := r.Lookup(MustParsePrefix("FFFFFF3C0C01"))
	require.True(t, ok)
	assert.Equal(t, "Battery Charge Level", d.Name)
	assert.Equal(t, float64(297), d.Divisor)
	assert.Equal(t, "battery", d.DeviceClass)

	_, ok = r.Lookup(MustParsePrefix("000000000000"))
	assert.False(t, ok)
}

func TestRegistry_PollOrderIsDefinitionOrder(t *testing.T) {
	defs := DefaultDefinitions()
	r, err := New(defs)
	require.NoError(t, err)

	prefixes := r.Prefixes()
	require.Len(t, prefixes, len(defs))
	for i, d := range defs {
		assert.Equal(t, d.Prefix, prefixes[i])
		assert.Equal(t, d.Name, r.Definitions()[i].Name)
	}

	// callers cannot reorder the registry through the returned slice
	prefixes[0], prefixes[1] = prefixes[1], prefixes[0]
	assert.Equal(t, defs[0].Prefix, r.Prefixes()[0])
}

func TestNew_Validation(t *testing.T) {
	a := MustParsePrefix("FFFFFF080C01")
	b := MustParsePrefix("FFFFFF060C01")

	cases := map[string][]Definition{
		"empty":            nil,
		"missing name":     {{Prefix: a, Divisor: 1}},
		"zero divisor":     {{Prefix: a, Name: "x", Divisor: 0}},
		"negative divisor": {{Prefix: a, Name: "x", Divisor: -3}},
		"duplicate prefix": {{Prefix: a, Name: "x", Divisor: 1}, {Prefix: a, Name: "y", Divisor: 1}},
		"duplicate name":   {{Prefix: a, Name: "x", Divisor: 1}, {Prefix: b, Name: "x", Divisor: 1}},
	}

	for name, defs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(defs)
			assert.Error(t, err)
		})
	}
}

func TestProbeRegistry(t *testing.T) {
	r := Probe()
	assert.Equal(t, 25, r.Len())

	d, ok := r.Lookup(MustParsePrefix("FF0100340C00"))
	require.True(t, ok)
	assert.Equal(t, "FF0100340C00", d.Name)
	assert.Equal(t, float64(1), d.Divisor)
}
