// Package wire reads fixed-width little-endian fields from a byte buffer that
// may hold fewer bytes than the protocol claims.
//
// A Buffer carries two lengths. The reported length is what the enclosing
// protocol says the payload spans; the captured length is how many bytes are
// actually present. Reads are always checked against the captured length and
// fail with ErrOutOfBounds instead of touching memory past it.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a read extends past the captured bytes.
var ErrOutOfBounds = errors.New("wire: read out of bounds")

// BoundsError describes a rejected read. Offsets are absolute, that is relative
// to the outermost buffer a view was derived from.
type BoundsError struct {
	Offset   int // absolute start of the rejected read
	Length   int // requested length
	Captured int // absolute end of the captured bytes
	Reported int // absolute end of the reported bytes
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("wire: read of %d bytes at offset %d exceeds captured data (captured to %d, reported to %d)",
		e.Length, e.Offset, e.Captured, e.Reported)
}

// Is lets errors.Is match ErrOutOfBounds.
func (e *BoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// BeyondReported reports whether the read also ran past the reported length,
// meaning the data is structurally wrong rather than merely not captured.
func (e *BoundsError) BeyondReported() bool {
	return e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > e.Reported
}

// Buffer is an immutable view of captured bytes. It is never written to and
// may be shared between goroutines.
type Buffer struct {
	data     []byte
	reported int
	base     int
}

// NewBuffer returns a view of captured that claims reported bytes on the wire.
// If reported is smaller than the captured data the extra bytes are not
// visible through the view.
func NewBuffer(captured []byte, reported int) *Buffer {
	if reported < 0 {
		reported = 0
	}
	if len(captured) > reported {
		captured = captured[:reported]
	}
	return &Buffer{data: captured, reported: reported}
}

// FromBytes returns a fully captured view of b.
func FromBytes(b []byte) *Buffer {
	return NewBuffer(b, len(b))
}

// CapturedLen returns the number of bytes available for reading.
func (b *Buffer) CapturedLen() int { return len(b.data) }

// ReportedLen returns the number of bytes the protocol claims.
func (b *Buffer) ReportedLen() int { return b.reported }

// Truncated reports whether fewer bytes were captured than reported.
func (b *Buffer) Truncated() bool { return len(b.data) < b.reported }

// Base returns the absolute offset of the start of this view.
func (b *Buffer) Base() int { return b.base }

// Abs converts an offset within the view into an absolute offset.
func (b *Buffer) Abs(off int) int { return b.base + off }

// Check validates that n bytes starting at off are captured.
func (b *Buffer) Check(off, n int) error {
	if off < 0 || n < 0 || off > len(b.data) || n > len(b.data)-off {
		return &BoundsError{
			Offset:   b.base + off,
			Length:   n,
			Captured: b.base + len(b.data),
			Reported: b.base + b.reported,
		}
	}
	return nil
}

// Bytes returns the n bytes at off. The slice aliases the buffer and is capped
// so appending to it never writes into the buffer.
func (b *Buffer) Bytes(off, n int) ([]byte, error) {
	if err := b.Check(off, n); err != nil {
		return nil, err
	}
	return b.data[off : off+n : off+n], nil
}

// Byte returns the byte at off.
func (b *Buffer) Byte(off int) (byte, error) {
	if err := b.Check(off, 1); err != nil {
		return 0, err
	}
	return b.data[off], nil
}

// Uint16 reads a little-endian uint16 at off.
func (b *Buffer) Uint16(off int) (uint16, error) {
	if err := b.Check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b.data[off:]), nil
}

// Uint32 reads a little-endian uint32 at off.
func (b *Buffer) Uint32(off int) (uint32, error) {
	if err := b.Check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.data[off:]), nil
}

// Uint64 reads a little-endian uint64 at off.
func (b *Buffer) Uint64(off int) (uint64, error) {
	if err := b.Check(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b.data[off:]), nil
}

// GUID reads a 16 byte GUID at off.
func (b *Buffer) GUID(off int) (GUID, error) {
	var g GUID
	if err := b.Check(off, len(g)); err != nil {
		return g, err
	}
	copy(g[:], b.data[off:])
	return g, nil
}

// Sub returns a view starting at off that reports reportedLen bytes. The
// captured part of the view is whatever of that range this buffer captured,
// so a sub view of a truncated buffer is truncated as well.
func (b *Buffer) Sub(off, reportedLen int) (*Buffer, error) {
	if off < 0 || reportedLen < 0 || off > b.reported {
		return nil, &BoundsError{
			Offset:   b.base + off,
			Length:   reportedLen,
			Captured: b.base + len(b.data),
			Reported: b.base + b.reported,
		}
	}
	var data []byte
	if off < len(b.data) {
		end := len(b.data)
		if reportedLen < end-off {
			end = off + reportedLen
		}
		data = b.data[off:end:end]
	}
	return &Buffer{data: data, reported: reportedLen, base: b.base + off}, nil
}
