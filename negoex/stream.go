// Package negoex decodes NEGOEX (SPNEGO Extended Negotiation) message
// streams.
//
// A buffer holds one or more concatenated messages. Decoding walks them in
// order and stops at the end of the buffer or at the first message that
// cannot be decoded, keeping every message decoded before it.
package negoex

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/kardianos/negoex/negoexlog"
	"github.com/kardianos/negoex/pku2u"
	"github.com/kardianos/negoex/wire"
)

// State is the terminal state of a stream decode.
type State int

const (
	// Complete means every reported byte was decoded.
	Complete State = iota
	// Truncated means a read ran past the captured bytes.
	Truncated
	// UnknownType means a message type above MaxMessageType was found.
	UnknownType
	// Malformed means a structural rule was broken.
	Malformed
)

func (s State) String() string {
	switch s {
	case Complete:
		return "Complete"
	case Truncated:
		return "Truncated"
	case UnknownType:
		return "UnknownType"
	case Malformed:
		return "Malformed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the outcome of decoding a stream.
type Result struct {
	Messages []*Message
	State    State
	// Err is nil when State is Complete.
	Err error
	// Offset is the absolute offset where decoding stopped.
	Offset int
}

// Summary lists the message type names, comma separated.
func (r *Result) Summary() string {
	names := make([]string, len(r.Messages))
	for i, m := range r.Messages {
		names[i] = m.Type.String()
	}
	return strings.Join(names, ", ")
}

// Transcript concatenates the raw bytes of the first n messages of r, or of
// all of them if r has fewer. It is the input of a VERIFY checksum.
func Transcript(r *Result, n int) []byte {
	if n > len(r.Messages) {
		n = len(r.Messages)
	}
	var b bytes.Buffer
	for _, m := range r.Messages[:n] {
		b.Write(m.Raw)
	}
	return b.Bytes()
}

// Decoder decodes NEGOEX streams. It holds no per-stream state and may be
// used from multiple goroutines.
type Decoder struct {
	cfg      Config
	log      *negoexlog.Logger
	identity *pku2u.Decoder
}

// NewDecoder returns a decoder for cfg.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{
		cfg: cfg,
		log: cfg.Logger,
		identity: &pku2u.Decoder{
			Resolver: cfg.Resolver,
			Kerberos: cfg.Kerberos,
			Logger:   cfg.Logger,
		},
	}
}

var defaultDecoder = NewDecoder(DefaultConfig())

// DecodeStream decodes buf with DefaultConfig.
func DecodeStream(buf *wire.Buffer) *Result {
	return defaultDecoder.Decode(buf)
}

// DecodeBytes decodes a fully captured stream with DefaultConfig.
func DecodeBytes(b []byte) *Result {
	return defaultDecoder.Decode(wire.FromBytes(b))
}

// DecodeBytes decodes a fully captured stream.
func (d *Decoder) DecodeBytes(b []byte) *Result {
	return d.Decode(wire.FromBytes(b))
}

// Decode walks the messages in buf.
func (d *Decoder) Decode(buf *wire.Buffer) *Result {
	res := &Result{}
	off := 0
	for off < buf.ReportedLen() {
		if d.cfg.MaxMessages > 0 && len(res.Messages) >= d.cfg.MaxMessages {
			res.Err = &HeaderError{
				Offset: buf.Abs(off),
				Err:    fmt.Errorf("%w: more than %d messages", ErrMalformed, d.cfg.MaxMessages),
			}
			break
		}
		msg, err := d.decodeMessage(buf, off)
		if err != nil {
			res.Err = err
			break
		}
		res.Messages = append(res.Messages, msg)
		off += int(msg.MessageLength)
	}
	res.Offset = buf.Abs(off)
	res.State = classify(res.Err)

	switch res.State {
	case Malformed:
		d.log.Errorf(negoexlog.AreaStream, "%s after %d messages: %v", res.State, len(res.Messages), res.Err)
	case Truncated, UnknownType:
		d.log.Printf(negoexlog.AreaStream, "%s after %d messages: %v", res.State, len(res.Messages), res.Err)
	default:
		d.log.Debugf(negoexlog.AreaStream, "%s: %d messages, %d bytes", res.State, len(res.Messages), buf.ReportedLen())
	}
	return res
}

// classify maps a stream error to a terminal state. A body read outside its
// own message is Malformed; any other short read is Truncated.
func classify(err error) State {
	if err == nil {
		return Complete
	}
	if errors.Is(err, ErrUnknownMessageType) {
		return UnknownType
	}
	var be *wire.BoundsError
	if errors.As(err, &be) {
		var bde *BodyDecodeError
		if errors.As(err, &bde) && be.BeyondReported() {
			return Malformed
		}
		return Truncated
	}
	return Malformed
}

func (d *Decoder) readHeader(buf *wire.Buffer, off int) (Header, error) {
	h := Header{Offset: buf.Abs(off)}
	c := wire.NewCursor(buf, off)

	sig, err := c.ReadBytes(len(Signature))
	if err != nil {
		return h, err
	}
	if !bytes.Equal(sig, Signature[:]) {
		return h, fmt.Errorf("%w: got %q", ErrSignatureMismatch, sig)
	}
	typ, err := c.ReadUint32()
	if err != nil {
		return h, err
	}
	h.Type = MessageType(typ)
	if h.Sequence, err = c.ReadUint32(); err != nil {
		return h, err
	}
	if h.HeaderLength, err = c.ReadUint32(); err != nil {
		return h, err
	}
	if h.MessageLength, err = c.ReadUint32(); err != nil {
		return h, err
	}
	if h.ConversationID, err = c.ReadGUID(); err != nil {
		return h, err
	}
	return h, nil
}

func (d *Decoder) decodeMessage(buf *wire.Buffer, off int) (*Message, error) {
	h, err := d.readHeader(buf, off)
	if err != nil {
		return nil, &HeaderError{Offset: buf.Abs(off), Err: err}
	}
	if !h.Type.Known() {
		return nil, &UnknownTypeError{Type: h.Type, Offset: h.Offset, Remaining: buf.ReportedLen() - off}
	}
	if h.MessageLength < HeaderSize {
		return nil, &HeaderError{
			Offset: h.Offset,
			Err:    fmt.Errorf("%w: message length %d shorter than header", ErrMalformed, h.MessageLength),
		}
	}
	n := int(h.MessageLength)
	if n > buf.ReportedLen()-off {
		return nil, &HeaderError{Offset: h.Offset, Err: &wire.BoundsError{
			Offset:   h.Offset,
			Length:   n,
			Captured: buf.Abs(buf.CapturedLen()),
			Reported: buf.Abs(buf.ReportedLen()),
		}}
	}
	d.log.Debugf(negoexlog.AreaMessage, "%s seq %d at %d, %d bytes, conversation %s",
		h.Type, h.Sequence, h.Offset, h.MessageLength, h.ConversationID)

	mb, err := buf.Sub(off, n)
	if err != nil {
		return nil, &HeaderError{Offset: h.Offset, Err: err}
	}
	raw, _ := mb.Bytes(0, mb.CapturedLen())
	msg := &Message{Header: h, Raw: raw}
	if d.log.Enabled(negoexlog.AreaMessage, negoexlog.LevelTrace) {
		d.log.Tracef(negoexlog.AreaMessage, "seq %d bytes:\n%s", h.Sequence, hex.Dump(raw))
	}

	switch h.Type {
	case MessageInitiatorNego, MessageAcceptorNego:
		msg.Body, err = d.decodeNego(mb)
	case MessageInitiatorMetaData, MessageAcceptorMetaData, MessageChallenge, MessageAPRequest:
		msg.Body, err = d.decodeExchange(mb)
	case MessageVerify:
		msg.Body, err = d.decodeVerify(mb)
	case MessageAlert:
		msg.Body, err = d.decodeAlert(mb)
	}
	if err != nil {
		return nil, &BodyDecodeError{MessageType: h.Type, Offset: h.Offset, Err: err}
	}
	return msg, nil
}
