package pku2u

import (
	"fmt"

	"github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/kardianos/negoex/ber"
	"github.com/kardianos/negoex/wire"
)

// KerberosDecoder decodes the Kerberos AP-REQ that follows a PKU2U identity
// sequence. off points at the first trailer byte within buf.
type KerberosDecoder interface {
	DecodeAPReq(buf *wire.Buffer, off int) (*APReq, error)
}

// KerberosDecoderFunc adapts a function to KerberosDecoder.
type KerberosDecoderFunc func(buf *wire.Buffer, off int) (*APReq, error)

func (f KerberosDecoderFunc) DecodeAPReq(buf *wire.Buffer, off int) (*APReq, error) {
	return f(buf, off)
}

// APReq summarises a decoded AP-REQ. Nothing is decrypted.
type APReq struct {
	Span    Span // the AP-REQ element, excluding any GSS token id
	PVNO    int
	MsgType int

	UseSessionKey  bool
	MutualRequired bool

	Realm       string // ticket realm
	ServiceName string // ticket sname
	TicketEType int32
	TicketKVNO  int

	AuthenticatorEType int32
}

// GSS-API token id preceding a raw AP-REQ (RFC 4121 Section 4.1).
var tokIDAPReq = [2]byte{0x01, 0x00}

// GokrbDecoder decodes AP-REQs with gokrb5.
type GokrbDecoder struct{}

// DecodeAPReq decodes the [APPLICATION 14] AP-REQ at off. A leading GSS-API
// token id (01 00) is skipped.
func (GokrbDecoder) DecodeAPReq(buf *wire.Buffer, off int) (*APReq, error) {
	if id, err := buf.Bytes(off, 2); err == nil && id[0] == tokIDAPReq[0] && id[1] == tokIDAPReq[1] {
		off += 2
	}
	h, err := ber.ReadHeader(buf, off)
	if err != nil {
		return nil, fmt.Errorf("read AP-REQ header: %w", err)
	}
	el, err := ber.Element(buf, h)
	if err != nil {
		return nil, fmt.Errorf("read AP-REQ: %w", err)
	}

	var req messages.APReq
	if err := req.Unmarshal(el); err != nil {
		return nil, fmt.Errorf("unmarshal AP-REQ: %w", err)
	}

	return &APReq{
		Span:               Span{Offset: buf.Abs(h.Offset), Length: len(el)},
		PVNO:               req.PVNO,
		MsgType:            req.MsgType,
		UseSessionKey:      types.IsFlagSet(&req.APOptions, flags.APOptionUseSessionKey),
		MutualRequired:     types.IsFlagSet(&req.APOptions, flags.APOptionMutualRequired),
		Realm:              req.Ticket.Realm,
		ServiceName:        req.Ticket.SName.PrincipalNameString(),
		TicketEType:        req.Ticket.EncPart.EType,
		TicketKVNO:         req.Ticket.EncPart.KVNO,
		AuthenticatorEType: req.EncryptedAuthenticator.EType,
	}, nil
}
