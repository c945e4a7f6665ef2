package negoex

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed          = errors.New("negoex: malformed message")
	ErrSignatureMismatch  = fmt.Errorf("%w: signature is not NEGOEXTS", ErrMalformed)
	ErrUnknownMessageType = errors.New("negoex: unknown message type")
)

// HeaderError reports a message header that could not be decoded.
type HeaderError struct {
	Offset int // absolute offset of the header
	Err    error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("negoex: header at offset %d: %v", e.Offset, e.Err)
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

// BodyDecodeError reports a message body that could not be decoded.
type BodyDecodeError struct {
	MessageType MessageType
	Offset      int // absolute offset of the message
	Err         error
}

func (e *BodyDecodeError) Error() string {
	return fmt.Sprintf("negoex: %s message at offset %d: %v", e.MessageType, e.Offset, e.Err)
}

func (e *BodyDecodeError) Unwrap() error {
	return e.Err
}

// UnknownTypeError is reported for a message type above MaxMessageType.
// Remaining counts the bytes from the message to the end of the stream;
// none of them are decoded.
type UnknownTypeError struct {
	Type      MessageType
	Offset    int
	Remaining int
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("negoex: unknown message type %d at offset %d, %d bytes not decoded",
		uint32(e.Type), e.Offset, e.Remaining)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownMessageType
}
