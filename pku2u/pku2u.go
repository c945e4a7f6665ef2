// Package pku2u decodes the PKU2U identity envelope carried inside NEGOEX
// exchange messages:
//
//	Applications ::= CHOICE {
//	    [APPLICATION 0] IMPLICIT SEQUENCE { OBJECT IDENTIFIER, BOOLEAN, OBJECT IDENTIFIER },
//	    [APPLICATION 1] IMPLICIT SEQUENCE { OBJECT IDENTIFIER, BOOLEAN, OBJECT IDENTIFIER }
//	}
//
// The bytes following the second object identifier hold a Kerberos AP-REQ,
// which is handed to a KerberosDecoder.
package pku2u

import (
	"errors"
	"fmt"

	"github.com/kardianos/negoex/ber"
	"github.com/kardianos/negoex/negoexlog"
	"github.com/kardianos/negoex/wire"
)

// Decode errors.
var (
	ErrUnrecognizedChoice = errors.New("pku2u: unrecognized Applications choice")
	ErrUnexpectedElement  = errors.New("pku2u: unexpected element")
	ErrNoKerberosTrailer  = errors.New("pku2u: no AP-REQ after identity sequence")
)

// ElementError reports an element that did not match the grammar.
type ElementError struct {
	Offset int    // absolute offset of the offending element
	Field  string // grammar position, e.g. "Applications" or "objectIdentifier"
	Got    ber.Identifier
	Err    error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("pku2u: %s at offset %d: got %s: %v", e.Field, e.Offset, e.Got, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// Span is an absolute byte range.
type Span struct {
	Offset int
	Length int
}

// Application is a decoded Applications CHOICE.
type Application struct {
	// Choice is the APPLICATION tag of the selected arm, 0 or 1. Both arms
	// carry the same SEQUENCE.
	Choice int
	Span   Span // whole CHOICE element

	OID            ObjectID
	Flag           bool
	FlagIdentifier ber.Identifier // the BOOLEAN is matched on any class and tag
	KerberosOID    ObjectID

	// Trailer is the range handed to the Kerberos decoder.
	Trailer Span
	// APReq is set when the Kerberos decoder succeeded. Otherwise
	// KerberosErr says why; a Kerberos failure never fails the envelope.
	APReq       *APReq
	KerberosErr error
}

// Decoder decodes PKU2U envelopes. The zero value resolves no OID names and
// does not decode the AP-REQ.
type Decoder struct {
	Resolver OIDResolver
	Kerberos KerberosDecoder
	Logger   *negoexlog.Logger
}

// NewDecoder returns a decoder using DefaultOIDs and GokrbDecoder.
func NewDecoder() *Decoder {
	return &Decoder{
		Resolver: DefaultOIDs(),
		Kerberos: GokrbDecoder{},
	}
}

var defaultDecoder = NewDecoder()

// DecodeApplication decodes the CHOICE at off with NewDecoder's defaults.
func DecodeApplication(buf *wire.Buffer, off int) (*Application, error) {
	return defaultDecoder.DecodeApplications(buf, off)
}

// DecodeApplications decodes the Applications CHOICE at off. The Kerberos
// trailer runs from the end of the SEQUENCE's last element to the end of buf.
func (d *Decoder) DecodeApplications(buf *wire.Buffer, off int) (*Application, error) {
	h, err := ber.ReadHeader(buf, off)
	if err != nil {
		return nil, err
	}
	if h.Class != ber.ClassApplication || (h.Tag != 0 && h.Tag != 1) {
		return nil, &ElementError{Offset: buf.Abs(off), Field: "Applications", Got: h.Identifier, Err: ErrUnrecognizedChoice}
	}
	if !h.Constructed {
		return nil, &ElementError{Offset: buf.Abs(off), Field: "Applications", Got: h.Identifier, Err: ErrUnexpectedElement}
	}
	if h.Length > buf.ReportedLen()-h.ValueOffset {
		return nil, &ElementError{Offset: buf.Abs(off), Field: "Applications", Got: h.Identifier, Err: ber.ErrInvalidLength}
	}
	d.Logger.Tracef(negoexlog.AreaPKU2U, "Applications %s at %d, %d content bytes", h.Identifier, buf.Abs(off), h.Length)

	app := &Application{
		Choice: h.Tag,
		Span:   Span{Offset: buf.Abs(off), Length: h.End() - off},
	}
	end := h.End()

	next := h.ValueOffset
	app.OID, next, err = d.decodeOID(buf, next, end, "objectIdentifier")
	if err != nil {
		return nil, err
	}
	app.Flag, app.FlagIdentifier, next, err = d.decodeFlag(buf, next, end)
	if err != nil {
		return nil, err
	}
	app.KerberosOID, next, err = d.decodeOID(buf, next, end, "kerberos")
	if err != nil {
		return nil, err
	}

	app.Trailer = Span{Offset: buf.Abs(next), Length: buf.ReportedLen() - next}
	d.decodeTrailer(buf, next, app)
	return app, nil
}

// decodeOID decodes a UNIVERSAL OBJECT IDENTIFIER at off that must end by end.
func (d *Decoder) decodeOID(buf *wire.Buffer, off, end int, field string) (ObjectID, int, error) {
	h, err := d.element(buf, off, end, field)
	if err != nil {
		return ObjectID{}, off, err
	}
	if !h.Is(ber.ClassUniversal, false, ber.TagOID) {
		return ObjectID{}, off, &ElementError{Offset: buf.Abs(off), Field: field, Got: h.Identifier, Err: ErrUnexpectedElement}
	}
	oid, err := parseOID(buf, h)
	if err != nil {
		return ObjectID{}, off, err
	}
	oid.Name = resolve(d.Resolver, oid.Value)
	d.Logger.Tracef(negoexlog.AreaPKU2U, "%s %s", field, oid)
	return oid, h.End(), nil
}

// decodeFlag decodes the BOOLEAN. Its class and tag are not checked.
func (d *Decoder) decodeFlag(buf *wire.Buffer, off, end int) (bool, ber.Identifier, int, error) {
	h, err := d.element(buf, off, end, "any")
	if err != nil {
		return false, ber.Identifier{}, off, err
	}
	v, err := ber.Boolean(buf, h)
	if err != nil {
		return false, h.Identifier, off, err
	}
	return v, h.Identifier, h.End(), nil
}

// element reads the header at off and checks the element fits before end.
func (d *Decoder) element(buf *wire.Buffer, off, end int, field string) (ber.Header, error) {
	if off >= end {
		return ber.Header{}, &ElementError{Offset: buf.Abs(off), Field: field, Err: fmt.Errorf("missing: %w", ErrUnexpectedElement)}
	}
	h, err := ber.ReadHeader(buf, off)
	if err != nil {
		return ber.Header{}, err
	}
	if h.Length > end-h.ValueOffset {
		return ber.Header{}, &ElementError{Offset: buf.Abs(off), Field: field, Got: h.Identifier, Err: ber.ErrInvalidLength}
	}
	return h, nil
}

func (d *Decoder) decodeTrailer(buf *wire.Buffer, off int, app *Application) {
	if app.Trailer.Length <= 0 {
		app.KerberosErr = ErrNoKerberosTrailer
		return
	}
	if d.Kerberos == nil {
		return
	}
	req, err := d.Kerberos.DecodeAPReq(buf, off)
	if err != nil {
		app.KerberosErr = err
		d.Logger.Printf(negoexlog.AreaKerberos, "AP-REQ at %d not decoded: %v", buf.Abs(off), err)
		return
	}
	app.APReq = req
}
