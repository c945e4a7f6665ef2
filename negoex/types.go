package negoex

import (
	"fmt"

	"github.com/kardianos/negoex/pku2u"
	"github.com/kardianos/negoex/wire"
)

// MessageType is the message_type field of a NEGOEX header.
type MessageType uint32

const (
	MessageInitiatorNego MessageType = iota
	MessageAcceptorNego
	MessageInitiatorMetaData
	MessageAcceptorMetaData
	MessageChallenge
	MessageAPRequest
	MessageVerify
	MessageAlert

	// MaxMessageType is the highest registered message type.
	MaxMessageType = MessageAlert
)

var messageTypeNames = [...]string{
	MessageInitiatorNego:     "INITIATOR_NEGO",
	MessageAcceptorNego:      "ACCEPTOR_NEGO",
	MessageInitiatorMetaData: "INITIATOR_META_DATA",
	MessageAcceptorMetaData:  "ACCEPTOR_META_DATA",
	MessageChallenge:         "CHALLENGE",
	MessageAPRequest:         "AP_REQUEST",
	MessageVerify:            "VERIFY",
	MessageAlert:             "ALERT",
}

func (t MessageType) String() string {
	if t.Known() {
		return messageTypeNames[t]
	}
	return fmt.Sprintf("Unknown (%d)", uint32(t))
}

// Known reports whether t is a registered message type.
func (t MessageType) Known() bool {
	return t <= MaxMessageType
}

// HeaderSize is the size of the fixed message header.
const HeaderSize = 40

// Signature opens every NEGOEX message.
var Signature = [8]byte{'N', 'E', 'G', 'O', 'E', 'X', 'T', 'S'}

// ChecksumScheme is the scheme field of a VERIFY checksum.
type ChecksumScheme uint32

const ChecksumSchemeRFC3961 ChecksumScheme = 1

func (s ChecksumScheme) String() string {
	if s == ChecksumSchemeRFC3961 {
		return "rfc3961"
	}
	return fmt.Sprintf("Unknown (%d)", uint32(s))
}

// Alert type and reason values carried in alert bodies.
const (
	AlertTypePulse   = 1
	AlertVerifyNoKey = 1
)

// AlertTypeName names an alert type.
func AlertTypeName(v uint32) string {
	if v == AlertTypePulse {
		return "ALERT_TYPE_PULSE"
	}
	return fmt.Sprintf("Unknown (%d)", v)
}

// AlertReasonName names an alert reason.
func AlertReasonName(v uint32) string {
	if v == AlertVerifyNoKey {
		return "ALERT_VERIFY_NO_KEY"
	}
	return fmt.Sprintf("Unknown (%d)", v)
}

// Header is a decoded message header. Offset is absolute within the stream.
type Header struct {
	Offset         int
	Type           MessageType
	Sequence       uint32
	HeaderLength   uint32
	MessageLength  uint32
	ConversationID wire.GUID
}

// End returns the absolute offset just past the message.
func (h Header) End() int {
	return h.Offset + int(h.MessageLength)
}

// Vector is a decoded (offset, count) descriptor. Offset is absolute and
// locates the descriptor itself; ArrayOffset is the message relative offset
// the descriptor points at.
type Vector struct {
	Offset      int
	ArrayOffset uint32
	Count       uint16
}

func (v Vector) String() string {
	return fmt.Sprintf("%d at %d", v.Count, v.ArrayOffset)
}

// ByteRange is a run of message bytes. Offset is absolute. Bytes holds the
// captured bytes and has Length bytes when the range was fully captured.
type ByteRange struct {
	Offset int
	Length int
	Bytes  []byte
}

// Body is one of *Nego, *Exchange, *Verify or *Alert.
type Body interface {
	body()
}

// Nego is the body of INITIATOR_NEGO and ACCEPTOR_NEGO.
type Nego struct {
	Random          [32]byte
	ProtocolVersion uint64

	AuthSchemeVector Vector
	AuthSchemes      []wire.GUID

	ExtensionVector Vector
	Extensions      []Extension
}

// Extension is one element of the extension vector: a descriptor pointing at
// the extension bytes.
type Extension struct {
	Vector Vector
	Data   ByteRange
}

// Exchange is the body of META_DATA, CHALLENGE and AP_REQUEST messages.
type Exchange struct {
	AuthScheme wire.GUID
	Vector     Vector
	Token      ByteRange

	// Identity is set when the token carried a PKU2U identity. When the
	// token looked like one but did not decode, IdentityErr says why and
	// the token is kept as opaque bytes.
	Identity    *pku2u.Application
	IdentityErr error
}

// Opaque reports whether the token was kept as bytes only.
func (e *Exchange) Opaque() bool {
	return e.Identity == nil
}

// Checksum is the checksum structure of a VERIFY message.
type Checksum struct {
	Offset       int
	HeaderLength uint32
	Scheme       ChecksumScheme
	Type         uint32
	Vector       Vector
	Value        ByteRange
}

// Verify is the body of a VERIFY message.
type Verify struct {
	AuthScheme wire.GUID
	Checksum   Checksum
}

// Alert is the body of an ALERT message. The alert array is not walked;
// everything after the error code is Data.
type Alert struct {
	AuthScheme wire.GUID
	ErrorCode  uint32
	Data       ByteRange
}

func (*Nego) body()     {}
func (*Exchange) body() {}
func (*Verify) body()   {}
func (*Alert) body()    {}

// Message is one decoded NEGOEX message.
type Message struct {
	Header
	Body Body

	// Raw holds the message bytes, header included.
	Raw []byte
}
