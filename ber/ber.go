// Package ber decodes single BER identifier and length octets (ITU-T X.690,
// Section 8.1) from a wire.Buffer. It is a cursor-advancing peek and skip
// helper, not a general ASN.1 engine: callers step over values they do not
// care about and recurse into the few they do.
package ber

import (
	"errors"
	"fmt"

	"github.com/kardianos/negoex/wire"
)

// Class is the two bit class of an identifier octet.
type Class uint8

const (
	ClassUniversal Class = iota
	ClassApplication
	ClassContextSpecific
	ClassPrivate
)

func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "UNIVERSAL"
	case ClassApplication:
		return "APPLICATION"
	case ClassContextSpecific:
		return "CONTEXT"
	case ClassPrivate:
		return "PRIVATE"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Universal tag numbers used by this module.
const (
	TagBoolean     = 1
	TagInteger     = 2
	TagOctetString = 4
	TagOID         = 6
	TagSequence    = 16
)

// Decoder errors.
var (
	ErrIndefiniteLength = errors.New("ber: indefinite length not supported")
	ErrInvalidLength    = errors.New("ber: invalid length encoding")
	ErrTagTooLarge      = errors.New("ber: tag number too large")
	ErrInvalidBoolean   = errors.New("ber: invalid boolean encoding")
)

// DecodeError reports where in the buffer decoding failed.
type DecodeError struct {
	Offset  int // absolute offset of the element being decoded
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ber: decode error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ber: decode error at offset %d: %s", e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(buf *wire.Buffer, off int, msg string, err error) *DecodeError {
	return &DecodeError{Offset: buf.Abs(off), Message: msg, Err: err}
}
