package ber

import (
	"fmt"

	"github.com/kardianos/negoex/wire"
)

// maxTag bounds long form tag numbers; nothing in this protocol comes close.
const maxTag = 1 << 24

// maxLengthOctets bounds long form lengths to what fits an int32.
const maxLengthOctets = 4

// Identifier is the decoded identifier octet(s) of an element.
type Identifier struct {
	Class       Class
	Constructed bool
	Tag         int
}

// Is reports whether id has the given class, form and tag.
func (id Identifier) Is(class Class, constructed bool, tag int) bool {
	return id.Class == class && id.Constructed == constructed && id.Tag == tag
}

func (id Identifier) String() string {
	form := "p"
	if id.Constructed {
		form = "c"
	}
	return fmt.Sprintf("[%s %d]/%s", id.Class, id.Tag, form)
}

// ReadIdentifier decodes the identifier octets at off and returns the offset
// of the first length octet.
func ReadIdentifier(buf *wire.Buffer, off int) (Identifier, int, error) {
	b, err := buf.Byte(off)
	if err != nil {
		return Identifier{}, off, newDecodeError(buf, off, "cannot read identifier", err)
	}
	id := Identifier{
		Class:       Class(b >> 6),
		Constructed: b&0x20 != 0,
		Tag:         int(b & 0x1f),
	}
	next := off + 1
	if id.Tag != 0x1f {
		return id, next, nil
	}

	// Long form: base 128, high bit set on all but the last octet.
	tag := 0
	for {
		b, err = buf.Byte(next)
		if err != nil {
			return Identifier{}, off, newDecodeError(buf, off, "cannot read long form tag", err)
		}
		next++
		if tag > maxTag {
			return Identifier{}, off, newDecodeError(buf, off, "long form tag", ErrTagTooLarge)
		}
		tag = tag<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	id.Tag = tag
	return id, next, nil
}

// ReadLength decodes the length octets at off. It returns the length value,
// whether the indefinite form was used and the offset of the first content
// octet. The indefinite form is reported, not rejected; callers that need a
// value span use ReadHeader, which rejects it.
func ReadLength(buf *wire.Buffer, off int) (length int, indefinite bool, next int, err error) {
	b, err := buf.Byte(off)
	if err != nil {
		return 0, false, off, newDecodeError(buf, off, "cannot read length", err)
	}
	next = off + 1
	if b&0x80 == 0 {
		return int(b), false, next, nil
	}
	n := int(b & 0x7f)
	if n == 0 {
		return 0, true, next, nil
	}
	if n > maxLengthOctets {
		return 0, false, off, newDecodeError(buf, off, fmt.Sprintf("%d length octets", n), ErrInvalidLength)
	}
	octets, err := buf.Bytes(next, n)
	if err != nil {
		return 0, false, off, newDecodeError(buf, off, "truncated length", err)
	}
	for _, o := range octets {
		length = length<<8 | int(o)
	}
	if length < 0 || length > 1<<31-1 {
		return 0, false, off, newDecodeError(buf, off, "length overflow", ErrInvalidLength)
	}
	return length, false, next + n, nil
}

// Header is one decoded identifier plus definite length. Offsets are within
// the buffer the header was read from.
type Header struct {
	Identifier
	Offset      int // first identifier octet
	ValueOffset int // first content octet
	Length      int // content length
}

// End returns the offset just past the element's content.
func (h Header) End() int {
	return h.ValueOffset + h.Length
}

// HeaderLen returns the number of identifier and length octets.
func (h Header) HeaderLen() int {
	return h.ValueOffset - h.Offset
}

// ReadHeader decodes identifier and length at off. Indefinite lengths are an
// error: every element this module walks uses definite lengths.
func ReadHeader(buf *wire.Buffer, off int) (Header, error) {
	id, next, err := ReadIdentifier(buf, off)
	if err != nil {
		return Header{}, err
	}
	length, indefinite, next, err := ReadLength(buf, next)
	if err != nil {
		return Header{}, err
	}
	if indefinite {
		return Header{}, newDecodeError(buf, off, id.String(), ErrIndefiniteLength)
	}
	return Header{Identifier: id, Offset: off, ValueOffset: next, Length: length}, nil
}

// Skip steps over the element at off and returns the offset just past it. The
// content does not have to be captured in full; only the span is computed.
// A span that runs past the reported length is rejected.
func Skip(buf *wire.Buffer, off int) (int, error) {
	h, err := ReadHeader(buf, off)
	if err != nil {
		return off, err
	}
	if h.Length > buf.ReportedLen()-h.ValueOffset {
		return off, newDecodeError(buf, off, fmt.Sprintf("%s content of %d bytes", h.Identifier, h.Length), ErrInvalidLength)
	}
	return h.End(), nil
}

// Content returns the captured content octets of h.
func Content(buf *wire.Buffer, h Header) ([]byte, error) {
	b, err := buf.Bytes(h.ValueOffset, h.Length)
	if err != nil {
		return nil, newDecodeError(buf, h.Offset, h.Identifier.String()+" content", err)
	}
	return b, nil
}

// Element returns the captured identifier, length and content octets of h.
func Element(buf *wire.Buffer, h Header) ([]byte, error) {
	b, err := buf.Bytes(h.Offset, h.End()-h.Offset)
	if err != nil {
		return nil, newDecodeError(buf, h.Offset, h.Identifier.String(), err)
	}
	return b, nil
}

// Boolean decodes the content of a BOOLEAN element. Any non-zero octet is true.
func Boolean(buf *wire.Buffer, h Header) (bool, error) {
	if h.Constructed || h.Length != 1 {
		return false, newDecodeError(buf, h.Offset, fmt.Sprintf("%s with length %d", h.Identifier, h.Length), ErrInvalidBoolean)
	}
	b, err := buf.Byte(h.ValueOffset)
	if err != nil {
		return false, newDecodeError(buf, h.Offset, "boolean content", err)
	}
	return b != 0, nil
}
