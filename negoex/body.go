package negoex

import (
	"fmt"

	"github.com/kardianos/negoex/ber"
	"github.com/kardianos/negoex/negoexlog"
	"github.com/kardianos/negoex/wire"
)

// Sizes of vector elements.
const (
	vectorSize     = 8
	authSchemeSize = 16
)

// Body decoders receive the message scoped buffer. Vector offsets are
// relative to the message start, which is offset 0 of buf, and the body
// starts right after the fixed header.

func readVector(c *wire.Cursor) (Vector, error) {
	v := Vector{Offset: c.Buffer().Abs(c.Offset())}
	var err error
	if v.ArrayOffset, err = c.ReadUint32(); err != nil {
		return v, err
	}
	if v.Count, err = c.ReadUint16(); err != nil {
		return v, err
	}
	if err = c.Skip(2); err != nil {
		return v, err
	}
	return v, nil
}

// vectorRange returns the bytes of v's array of elements of size bytes each.
// The whole array must be captured before any element is read.
func vectorRange(buf *wire.Buffer, v Vector, size int) (ByteRange, error) {
	off := int(v.ArrayOffset)
	n := int(v.Count) * size
	b, err := buf.Bytes(off, n)
	if err != nil {
		return ByteRange{}, err
	}
	return ByteRange{Offset: buf.Abs(off), Length: n, Bytes: b}, nil
}

func (d *Decoder) decodeNego(buf *wire.Buffer) (*Nego, error) {
	c := wire.NewCursor(buf, HeaderSize)
	n := &Nego{}

	random, err := c.ReadBytes(len(n.Random))
	if err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}
	copy(n.Random[:], random)
	if n.ProtocolVersion, err = c.ReadUint64(); err != nil {
		return nil, fmt.Errorf("protocol version: %w", err)
	}
	if n.AuthSchemeVector, err = readVector(c); err != nil {
		return nil, fmt.Errorf("auth scheme vector: %w", err)
	}
	if n.ExtensionVector, err = readVector(c); err != nil {
		return nil, fmt.Errorf("extension vector: %w", err)
	}

	d.log.Tracef(negoexlog.AreaMessage, "AuthSchemes: %s", n.AuthSchemeVector)
	if _, err := vectorRange(buf, n.AuthSchemeVector, authSchemeSize); err != nil {
		return nil, fmt.Errorf("auth schemes %s: %w", n.AuthSchemeVector, err)
	}
	n.AuthSchemes = make([]wire.GUID, 0, n.AuthSchemeVector.Count)
	for i := 0; i < int(n.AuthSchemeVector.Count); i++ {
		g, err := buf.GUID(int(n.AuthSchemeVector.ArrayOffset) + i*authSchemeSize)
		if err != nil {
			return nil, fmt.Errorf("auth scheme %d: %w", i, err)
		}
		n.AuthSchemes = append(n.AuthSchemes, g)
	}

	d.log.Tracef(negoexlog.AreaMessage, "Extensions: %s", n.ExtensionVector)
	if _, err := vectorRange(buf, n.ExtensionVector, vectorSize); err != nil {
		return nil, fmt.Errorf("extensions %s: %w", n.ExtensionVector, err)
	}
	n.Extensions = make([]Extension, 0, n.ExtensionVector.Count)
	for i := 0; i < int(n.ExtensionVector.Count); i++ {
		ec := wire.NewCursor(buf, int(n.ExtensionVector.ArrayOffset)+i*vectorSize)
		ev, err := readVector(ec)
		if err != nil {
			return nil, fmt.Errorf("extension %d: %w", i, err)
		}
		data, err := vectorRange(buf, ev, 1)
		if err != nil {
			return nil, fmt.Errorf("extension %d bytes %s: %w", i, ev, err)
		}
		n.Extensions = append(n.Extensions, Extension{Vector: ev, Data: data})
	}
	return n, nil
}

func (d *Decoder) decodeExchange(buf *wire.Buffer) (*Exchange, error) {
	c := wire.NewCursor(buf, HeaderSize)
	ex := &Exchange{}

	var err error
	if ex.AuthScheme, err = c.ReadGUID(); err != nil {
		return nil, fmt.Errorf("auth scheme: %w", err)
	}
	if ex.Vector, err = readVector(c); err != nil {
		return nil, fmt.Errorf("exchange vector: %w", err)
	}
	if ex.Token, err = vectorRange(buf, ex.Vector, 1); err != nil {
		return nil, fmt.Errorf("exchange %s: %w", ex.Vector, err)
	}
	d.log.Tracef(negoexlog.AreaMessage, "Exchange: %d bytes at %d", ex.Vector.Count, ex.Vector.ArrayOffset)

	d.decodeIdentity(buf, ex)
	return ex, nil
}

// decodeIdentity looks for a PKU2U identity in the exchange token. A token
// that does not start with [APPLICATION 0] is opaque. Failures past that
// point are recorded on ex and never fail the message.
func (d *Decoder) decodeIdentity(buf *wire.Buffer, ex *Exchange) {
	if ex.Token.Length == 0 {
		return
	}
	tok, err := buf.Sub(int(ex.Vector.ArrayOffset), ex.Token.Length)
	if err != nil {
		return
	}
	id, _, err := ber.ReadIdentifier(tok, 0)
	if err != nil || !id.Is(ber.ClassApplication, true, 0) {
		d.log.Tracef(negoexlog.AreaBER, "exchange token at %d is opaque (%s)", tok.Abs(0), id)
		return
	}

	off, err := d.skipGSSHeader(tok)
	if err != nil {
		ex.IdentityErr = err
		d.log.Printf(negoexlog.AreaPKU2U, "exchange token at %d: %v", tok.Abs(0), err)
		return
	}
	app, err := d.identity.DecodeApplications(tok, off)
	if err != nil {
		ex.IdentityErr = err
		d.log.Printf(negoexlog.AreaPKU2U, "PKU2U identity at %d: %v", tok.Abs(off), err)
		return
	}
	ex.Identity = app
}

// skipGSSHeader steps into the [APPLICATION 0] token and over the mechanism
// OID and the element after it, returning the offset of the identity.
func (d *Decoder) skipGSSHeader(tok *wire.Buffer) (int, error) {
	h, err := ber.ReadHeader(tok, 0)
	if err != nil {
		return 0, err
	}
	off, err := ber.Skip(tok, h.ValueOffset)
	if err != nil {
		return 0, fmt.Errorf("mechanism OID: %w", err)
	}
	d.log.Tracef(negoexlog.AreaBER, "skipped mechanism OID at %d", tok.Abs(h.ValueOffset))
	next, err := ber.Skip(tok, off)
	if err != nil {
		return 0, fmt.Errorf("token id: %w", err)
	}
	d.log.Tracef(negoexlog.AreaBER, "skipped element at %d", tok.Abs(off))
	return next, nil
}

func (d *Decoder) decodeVerify(buf *wire.Buffer) (*Verify, error) {
	c := wire.NewCursor(buf, HeaderSize)
	v := &Verify{}

	var err error
	if v.AuthScheme, err = c.ReadGUID(); err != nil {
		return nil, fmt.Errorf("auth scheme: %w", err)
	}
	cs := &v.Checksum
	cs.Offset = buf.Abs(c.Offset())
	if cs.HeaderLength, err = c.ReadUint32(); err != nil {
		return nil, fmt.Errorf("checksum header length: %w", err)
	}
	scheme, err := c.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("checksum scheme: %w", err)
	}
	cs.Scheme = ChecksumScheme(scheme)
	if cs.Type, err = c.ReadUint32(); err != nil {
		return nil, fmt.Errorf("checksum type: %w", err)
	}
	if cs.Vector, err = readVector(c); err != nil {
		return nil, fmt.Errorf("checksum vector: %w", err)
	}
	if cs.Value, err = vectorRange(buf, cs.Vector, 1); err != nil {
		return nil, fmt.Errorf("checksum %s: %w", cs.Vector, err)
	}
	d.log.Tracef(negoexlog.AreaMessage, "Checksum: scheme %s type %d, %d bytes at %d",
		cs.Scheme, cs.Type, cs.Vector.Count, cs.Vector.ArrayOffset)
	return v, nil
}

func (d *Decoder) decodeAlert(buf *wire.Buffer) (*Alert, error) {
	c := wire.NewCursor(buf, HeaderSize)
	a := &Alert{}

	var err error
	if a.AuthScheme, err = c.ReadGUID(); err != nil {
		return nil, fmt.Errorf("auth scheme: %w", err)
	}
	if a.ErrorCode, err = c.ReadUint32(); err != nil {
		return nil, fmt.Errorf("error code: %w", err)
	}
	off := c.Offset()
	n := buf.ReportedLen() - off
	rest, err := buf.Bytes(off, n)
	if err != nil {
		return nil, fmt.Errorf("alert data: %w", err)
	}
	a.Data = ByteRange{Offset: buf.Abs(off), Length: n, Bytes: rest}
	return a, nil
}
