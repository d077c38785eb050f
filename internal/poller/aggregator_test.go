package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/ups-bridge/internal/codec"
	"github.com/benmeehan/ups-bridge/internal/sensors"
)

func TestAggregator_LastWriteWins(t *testing.T) {
	registry := sensors.Default()
	c := codec.New(registry)
	agg := NewAggregator(registry)

	agg.StartCycle()
	agg.Record(c.Decode([]byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0x64, 0x00}))
	agg.Record(c.Decode([]byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0xE8, 0x08}))
	s := agg.FinishCycle()

	require.Equal(t, 1, s.Len())
	m, ok := s.Get("Mains Voltage")
	require.True(t, ok)
	assert.Equal(t, 228.0, m.Value)
	assert.Equal(t, uint16(2280), m.Raw)
}

func TestAggregator_IgnoresUnknown(t *testing.T) {
	registry := sensors.Default()
	c := codec.New(registry)
	agg := NewAggregator(registry)

	agg.StartCycle()
	agg.Record(c.Decode([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}))
	agg.Record(c.Decode([]byte{0xFF}))

	assert.Equal(t, 0, agg.FinishCycle().Len())
}

func TestAggregator_FinishCycleResets(t *testing.T) {
	registry := sensors.Default()
	c := codec.New(registry)
	agg := NewAggregator(registry)

	agg.StartCycle()
	agg.Record(c.Decode([]byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0x64, 0x00}))
	first := agg.FinishCycle()
	second := agg.FinishCycle()

	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 0, second.Len())
}

func TestAggregator_StartCycleDiscardsPartial(t *testing.T) {
	registry := sensors.Default()
	c := codec.New(registry)
	agg := NewAggregator(registry)

	agg.StartCycle()
	agg.Record(c.Decode([]byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0x64, 0x00}))
	agg.StartCycle()

	assert.Equal(t, 0, agg.FinishCycle().Len())
}

func TestAggregator_Missing(t *testing.T) {
	registry := sensors.Default()
	c := codec.New(registry)
	agg := NewAggregator(registry)

	agg.StartCycle()
	agg.Record(c.Decode([]byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0x64, 0x00}))
	agg.Record(c.Decode([]byte{0xFF, 0xFF, 0xFF, 0x3C, 0x0C, 0x01, 0x30, 0x75}))
	s := agg.FinishCycle()

	assert.Equal(t, []string{
		"Battery Voltage",
		"Charge Current",
		"Discharge Current",
		"Load Percentage",
	}, agg.Missing(s))
}

func TestSnapshot_NamesSorted(t *testing.T) {
	s := newSnapshot(timeZero)
	s.Measurements["b"] = Measurement{Name: "b"}
	s.Measurements["a"] = Measurement{Name: "a"}

	assert.Equal(t, []string{"a", "b"}, s.Names())
}
