package pku2u

import (
	"github.com/jcmturner/gofork/encoding/asn1"

	"github.com/kardianos/negoex/ber"
	"github.com/kardianos/negoex/wire"
)

// Well known object identifiers.
const (
	OIDPKU2U        = "1.3.6.1.5.2.7"
	OIDKerberos5    = "1.2.840.113554.1.2.2"
	OIDKerberos5U2U = "1.2.840.113554.1.2.2.3"
	OIDMSKerberos5  = "1.2.840.48018.1.2.2"
	OIDIAKERB       = "1.3.6.1.5.2.5"
	OIDSPNEGO       = "1.3.6.1.5.5.2"
	OIDNEGOEX       = "1.3.6.1.4.1.311.2.2.30"
	OIDNTLMSSP      = "1.3.6.1.4.1.311.2.2.10"
)

// ObjectID is a decoded OBJECT IDENTIFIER. Value is always the dotted form
// found on the wire; Name is empty when no resolver knew it.
type ObjectID struct {
	Value string
	Name  string
	Span  Span // whole element
}

func (o ObjectID) String() string {
	if o.Name == "" {
		return o.Value
	}
	return o.Value + " (" + o.Name + ")"
}

// OIDResolver maps a dotted object identifier to a display name. It is best
// effort and must be safe for concurrent use.
type OIDResolver interface {
	ResolveOID(dotted string) (name string, ok bool)
}

// OIDResolverFunc adapts a function to OIDResolver.
type OIDResolverFunc func(dotted string) (string, bool)

func (f OIDResolverFunc) ResolveOID(dotted string) (string, bool) {
	return f(dotted)
}

// OIDTable is a read-only OIDResolver.
type OIDTable map[string]string

func (t OIDTable) ResolveOID(dotted string) (string, bool) {
	name, ok := t[dotted]
	return name, ok
}

var defaultOIDs = map[string]string{
	OIDPKU2U:        "pku2u",
	OIDKerberos5:    "KRB5 - Kerberos 5",
	OIDKerberos5U2U: "KRB5 - Kerberos 5 - User to User",
	OIDMSKerberos5:  "MS KRB5 - Microsoft Kerberos 5",
	OIDIAKERB:       "iakerb",
	OIDSPNEGO:       "SPNEGO - Simple Protected Negotiation",
	OIDNEGOEX:       "NEGOEX - SPNEGO Extended Negotiation Security Mechanism",
	OIDNTLMSSP:      "NTLMSSP - Microsoft NTLM Security Support Provider",
}

// DefaultOIDs returns a table naming the mechanisms seen around NEGOEX.
// Each call returns a new table the caller may extend.
func DefaultOIDs() OIDTable {
	t := make(OIDTable, len(defaultOIDs))
	for k, v := range defaultOIDs {
		t[k] = v
	}
	return t
}

func resolve(r OIDResolver, dotted string) string {
	if r == nil {
		return ""
	}
	name, ok := r.ResolveOID(dotted)
	if !ok {
		return ""
	}
	return name
}

// parseOID decodes the OBJECT IDENTIFIER element described by h.
func parseOID(buf *wire.Buffer, h ber.Header) (ObjectID, error) {
	el, err := ber.Element(buf, h)
	if err != nil {
		return ObjectID{}, err
	}
	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(el, &oid); err != nil {
		return ObjectID{}, &ber.DecodeError{Offset: buf.Abs(h.Offset), Message: "object identifier", Err: err}
	}
	return ObjectID{
		Value: oid.String(),
		Span:  Span{Offset: buf.Abs(h.Offset), Length: h.End() - h.Offset},
	}, nil
}
