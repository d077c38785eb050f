package sensors

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// PrefixLen is the length of an opcode prefix on the wire.
const PrefixLen = 6

// Prefix identifies one measurement's request/response pair on the device protocol.
type Prefix [PrefixLen]byte

// ParsePrefix decodes a 12 character hex string (case-insensitive) into a Prefix.
func ParsePrefix(s string) (Prefix, error) {
	var p Prefix

	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return p, fmt.Errorf("invalid prefix %q: %w", s, err)
	}
	if len(raw) != PrefixLen {
		return p, fmt.Errorf("invalid prefix %q: expected %d bytes, got %d", s, PrefixLen, len(raw))
	}

	copy(p[:], raw)
	return p, nil
}

// MustParsePrefix is like ParsePrefix but panics on error. Used for static tables.
func MustParsePrefix(s string) Prefix {
	p, err := ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PrefixFromBytes copies the first PrefixLen bytes of b. ok is false if b is too short.
func PrefixFromBytes(b []byte) (p Prefix, ok bool) {
	if len(b) < PrefixLen {
		return p, false
	}
	copy(p[:], b[:PrefixLen])
	return p, true
}

// String returns the prefix as upper-case hex, e.g. "FFFFFF080C01".
func (p Prefix) String() string {
	return strings.ToUpper(hex.EncodeToString(p[:]))
}

// Bytes returns a copy of the prefix bytes.
func (p Prefix) Bytes() []byte {
	out := make([]byte, PrefixLen)
	copy(out, p[:])
	return out
}
