package wire

import (
	"encoding/hex"
	"fmt"

	uuid "github.com/hashicorp/go-uuid"
)

// GUID is a 16 byte Windows GUID as laid out on the wire: the first three
// groups are little-endian, the last eight bytes are in order.
type GUID [16]byte

// swap converts between wire order and the big-endian order of the textual form.
func (g GUID) swap() [16]byte {
	return [16]byte{
		g[3], g[2], g[1], g[0],
		g[5], g[4],
		g[7], g[6],
		g[8], g[9], g[10], g[11], g[12], g[13], g[14], g[15],
	}
}

// String returns the registry form, e.g. "0d53335c-f9ea-4d0d-b2ec-4ae3786ec308".
func (g GUID) String() string {
	be := g.swap()
	s, err := uuid.FormatUUID(be[:])
	if err != nil {
		return hex.EncodeToString(g[:])
	}
	return s
}

// IsZero reports whether all bytes of g are zero.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// ParseGUID parses the registry form of a GUID into wire order.
func ParseGUID(s string) (GUID, error) {
	b, err := uuid.ParseUUID(s)
	if err != nil {
		return GUID{}, fmt.Errorf("parse GUID %q: %w", s, err)
	}
	var be GUID
	copy(be[:], b)
	// swap is its own inverse.
	return GUID(be.swap()), nil
}

// MustParseGUID is like ParseGUID but panics on error. It is meant for
// package level constants.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}
