package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/kardianos/negoex/checksum"
	"github.com/kardianos/negoex/negoex"
	"github.com/kardianos/negoex/pku2u"
)

// maxOpaque bounds the bytes printed for opaque data.
const maxOpaque = 32

type printer struct {
	w     io.Writer
	err   error
	key   *types.EncryptionKey
	usage uint32
}

func (p *printer) printf(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	for i := 0; i < depth; i++ {
		if _, p.err = io.WriteString(p.w, "  "); p.err != nil {
			return
		}
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func opaque(b []byte) string {
	if len(b) > maxOpaque {
		return hex.EncodeToString(b[:maxOpaque]) + "..."
	}
	return hex.EncodeToString(b)
}

func (p *printer) result(res *negoex.Result) {
	for i, m := range res.Messages {
		p.printf(0, "%s seq %d at %d, %d bytes, conversation %s",
			m.Type, m.Sequence, m.Offset, m.MessageLength, m.ConversationID)
		switch b := m.Body.(type) {
		case *negoex.Nego:
			p.nego(b)
		case *negoex.Exchange:
			p.exchange(b)
		case *negoex.Verify:
			p.verify(res, i, b)
		case *negoex.Alert:
			p.alert(b)
		}
	}
	p.printf(0, "%s: %s", res.State, res.Summary())
	if res.Err != nil {
		p.printf(0, "error: %v", res.Err)
	}
}

func (p *printer) nego(n *negoex.Nego) {
	p.printf(1, "Random: %x", n.Random)
	p.printf(1, "ProtocolVersion: %d", n.ProtocolVersion)
	p.printf(1, "AuthSchemes: %s", n.AuthSchemeVector)
	for _, g := range n.AuthSchemes {
		p.printf(2, "AuthScheme: %s", g)
	}
	p.printf(1, "Extensions: %s", n.ExtensionVector)
	for _, e := range n.Extensions {
		p.printf(2, "Extension: %s: %s", e.Vector, opaque(e.Data.Bytes))
	}
}

func (p *printer) exchange(e *negoex.Exchange) {
	p.printf(1, "AuthScheme: %s", e.AuthScheme)
	p.printf(1, "Exchange: %s", e.Vector)
	switch {
	case e.Identity != nil:
		p.identity(e.Identity)
	case e.IdentityErr != nil:
		p.printf(2, "PKU2U: %v", e.IdentityErr)
		p.printf(2, "Bytes: %s", opaque(e.Token.Bytes))
	default:
		p.printf(2, "Bytes: %s", opaque(e.Token.Bytes))
	}
}

func (p *printer) identity(a *pku2u.Application) {
	p.printf(2, "PKU2U [APPLICATION %d] at %d", a.Choice, a.Span.Offset)
	p.printf(3, "objectIdentifier: %s", a.OID)
	p.printf(3, "any: %t (%s)", a.Flag, a.FlagIdentifier)
	p.printf(3, "kerberos: %s", a.KerberosOID)
	if a.APReq == nil {
		p.printf(3, "AP-REQ: %v", a.KerberosErr)
		return
	}
	r := a.APReq
	p.printf(3, "AP-REQ at %d: pvno %d, ticket %s@%s etype %d kvno %d, authenticator etype %d",
		r.Span.Offset, r.PVNO, r.ServiceName, r.Realm, r.TicketEType, r.TicketKVNO, r.AuthenticatorEType)
	p.printf(4, "mutual-required: %t, use-session-key: %t", r.MutualRequired, r.UseSessionKey)
}

func (p *printer) verify(res *negoex.Result, i int, v *negoex.Verify) {
	cs := v.Checksum
	p.printf(1, "AuthScheme: %s", v.AuthScheme)
	p.printf(1, "Checksum: scheme %s, type %d", cs.Scheme, cs.Type)
	p.printf(2, "Value: %s", cs.Vector)
	p.printf(3, "%x", cs.Value.Bytes)
	if p.key == nil {
		return
	}
	if err := checksum.VerifyResult(*p.key, res, i, p.usage); err != nil {
		p.printf(2, "Verified: %v", err)
		return
	}
	p.printf(2, "Verified: ok")
}

func (p *printer) alert(a *negoex.Alert) {
	p.printf(1, "AuthScheme: %s", a.AuthScheme)
	p.printf(1, "ErrorCode: %#08x", a.ErrorCode)
	p.printf(1, "Data: %d bytes: %s", a.Data.Length, opaque(a.Data.Bytes))
}
