// Package codec encodes request frames and decodes notification frames of the
// inverter's BLE protocol.
//
// Request:  6 byte opcode prefix ++ FF FF
// Response: 6 byte opcode prefix ... 2 byte little-endian unsigned value (>= 8 bytes)
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/benmeehan/ups-bridge/internal/sensors"
)

const (
	// RequestLen is the length of every request frame.
	RequestLen = sensors.PrefixLen + 2
	// MinResponseLen is the shortest frame that carries a value.
	MinResponseLen = sensors.PrefixLen + 2
)

var terminator = [2]byte{0xFF, 0xFF}

// Response is the result of decoding one notification frame.
type Response struct {
	Known  bool
	Prefix sensors.Prefix
	Name   string
	Raw    uint16
	Value  float64 // Raw / divisor, rounded to 2 decimals
	Frame  []byte  // copy of the received bytes
}

// Hex returns the received frame as hex, for diagnostics.
func (r Response) Hex() string {
	return hex.EncodeToString(r.Frame)
}

// Codec decodes frames against a sensor registry.
type Codec struct {
	registry *sensors.Registry
}

// New returns a codec bound to registry.
func New(registry *sensors.Registry) *Codec {
	return &Codec{registry: registry}
}

// EncodeRequest builds the request frame for p.
func EncodeRequest(p sensors.Prefix) []byte {
	frame := make([]byte, 0, RequestLen)
	frame = append(frame, p[:]...)
	return append(frame, terminator[:]...)
}

// Decode splits frame into prefix and value and resolves the prefix. Unknown
// prefixes and short frames return Known == false; that is not an error.
func (c *Codec) Decode(frame []byte) Response {
	res := Response{Frame: append([]byte(nil), frame...)}

	if len(frame) < MinResponseLen {
		if p, ok := sensors.PrefixFromBytes(frame); ok {
			res.Prefix = p
		}
		return res
	}

	res.Prefix, _ = sensors.PrefixFromBytes(frame)
	res.Raw = binary.LittleEndian.Uint16(frame[len(frame)-2:])

	def, ok := c.registry.Lookup(res.Prefix)
	if !ok {
		return res
	}

	res.Known = true
	res.Name = def.Name
	res.Value = Round(float64(res.Raw) / def.Divisor)
	return res
}

// Round rounds v to two decimal places.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
