// Package negoextest builds NEGOEX messages and PKU2U tokens for tests.
//
// Vector offsets are laid out the way Windows does: the fixed part of the
// message first, then the arrays it points at, in field order.
package negoextest

import (
	"encoding/binary"
	"strconv"
	"strings"
	"testing"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/asn1tools"
	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/iana/msgtype"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/kardianos/negoex/wire"
)

// Message types, mirrored so this package does not import negoex.
const (
	InitiatorNego     = 0
	AcceptorNego      = 1
	InitiatorMetaData = 2
	AcceptorMetaData  = 3
	Challenge         = 4
	APRequest         = 5
	Verify            = 6
	Alert             = 7
)

const headerSize = 40

// Conversation is the conversation id used by the builders.
var Conversation = wire.MustParseGUID("a0b1c2d3-e4f5-0617-2839-4a5b6c7d8e9f")

// Header returns a 40 byte message header.
func Header(msgType, seq, headerLen, msgLen uint32) []byte {
	b := make([]byte, 0, headerSize)
	b = append(b, "NEGOEXTS"...)
	b = binary.LittleEndian.AppendUint32(b, msgType)
	b = binary.LittleEndian.AppendUint32(b, seq)
	b = binary.LittleEndian.AppendUint32(b, headerLen)
	b = binary.LittleEndian.AppendUint32(b, msgLen)
	b = append(b, Conversation[:]...)
	return b
}

// Vector returns an 8 byte vector descriptor.
func Vector(offset uint32, count uint16) []byte {
	b := binary.LittleEndian.AppendUint32(nil, offset)
	b = binary.LittleEndian.AppendUint16(b, count)
	return append(b, 0, 0)
}

func finish(msgType, seq uint32, fixed int, body []byte) []byte {
	msg := Header(msgType, seq, uint32(fixed), uint32(headerSize+len(body)))
	return append(msg, body...)
}

// Nego builds a NEGO message. Extension descriptors follow the auth scheme
// array and the extension bytes follow the descriptors.
func Nego(msgType, seq uint32, random [32]byte, version uint64, schemes []wire.GUID, exts [][]byte) []byte {
	const fixed = headerSize + 32 + 8 + 8 + 8
	schemeOff := fixed
	extOff := schemeOff + 16*len(schemes)
	dataOff := extOff + 8*len(exts)

	var body []byte
	body = append(body, random[:]...)
	body = binary.LittleEndian.AppendUint64(body, version)
	body = append(body, Vector(uint32(schemeOff), uint16(len(schemes)))...)
	body = append(body, Vector(uint32(extOff), uint16(len(exts)))...)
	for _, g := range schemes {
		body = append(body, g[:]...)
	}
	off := dataOff
	for _, e := range exts {
		body = append(body, Vector(uint32(off), uint16(len(e)))...)
		off += len(e)
	}
	for _, e := range exts {
		body = append(body, e...)
	}
	return finish(msgType, seq, fixed, body)
}

// Exchange builds a META_DATA, CHALLENGE or AP_REQUEST message.
func Exchange(msgType, seq uint32, scheme wire.GUID, token []byte) []byte {
	const fixed = headerSize + 16 + 8
	var body []byte
	body = append(body, scheme[:]...)
	body = append(body, Vector(fixed, uint16(len(token)))...)
	body = append(body, token...)
	return finish(msgType, seq, fixed, body)
}

// VerifyMessage builds a VERIFY message with an rfc3961 checksum.
func VerifyMessage(seq uint32, scheme wire.GUID, checksumType uint32, checksum []byte) []byte {
	const fixed = headerSize + 16 + 12 + 8
	var body []byte
	body = append(body, scheme[:]...)
	body = binary.LittleEndian.AppendUint32(body, 20)
	body = binary.LittleEndian.AppendUint32(body, 1)
	body = binary.LittleEndian.AppendUint32(body, checksumType)
	body = append(body, Vector(fixed, uint16(len(checksum)))...)
	body = append(body, checksum...)
	return finish(Verify, seq, fixed, body)
}

// AlertMessage builds an ALERT message with opaque trailing bytes.
func AlertMessage(seq uint32, scheme wire.GUID, errorCode uint32, rest []byte) []byte {
	const fixed = headerSize + 16 + 4
	var body []byte
	body = append(body, scheme[:]...)
	body = binary.LittleEndian.AppendUint32(body, errorCode)
	body = append(body, rest...)
	return finish(Alert, seq, fixed, body)
}

// Stream concatenates messages.
func Stream(msgs ...[]byte) []byte {
	var b []byte
	for _, m := range msgs {
		b = append(b, m...)
	}
	return b
}

// OID returns the DER encoding of a dotted object identifier.
func OID(tb testing.TB, dotted string) []byte {
	tb.Helper()
	var oid asn1.ObjectIdentifier
	for _, part := range strings.Split(dotted, ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			tb.Fatalf("bad OID %q: %v", dotted, err)
		}
		oid = append(oid, n)
	}
	b, err := asn1.Marshal(oid)
	if err != nil {
		tb.Fatalf("marshal OID %q: %v", dotted, err)
	}
	return b
}

// Boolean returns a DER BOOLEAN.
func Boolean(v bool) []byte {
	if v {
		return []byte{0x01, 0x01, 0xff}
	}
	return []byte{0x01, 0x01, 0x00}
}

// Identity returns an Applications CHOICE: [APPLICATION choice] wrapping
// OID, BOOLEAN, OID.
func Identity(tb testing.TB, choice int, oid string, flag bool, krbOID string) []byte {
	tb.Helper()
	var content []byte
	content = append(content, OID(tb, oid)...)
	content = append(content, Boolean(flag)...)
	content = append(content, OID(tb, krbOID)...)
	return asn1tools.AddASNAppTag(content, choice)
}

// GSSToken wraps the PKU2U identity and AP-REQ trailer the way the exchange
// decoder expects: [APPLICATION 0] { mech OID, token id, identity, trailer }.
func GSSToken(tb testing.TB, identity, trailer []byte) []byte {
	tb.Helper()
	var content []byte
	content = append(content, OID(tb, "1.3.6.1.5.2.7")...)
	content = append(content, 0x01, 0x00)
	content = append(content, identity...)
	content = append(content, trailer...)
	return asn1tools.AddASNAppTag(content, 0)
}

// APReq returns a marshalled AP-REQ for sname@realm with mutual auth
// requested. The encrypted parts are filler; nothing can decrypt them.
func APReq(tb testing.TB, realm, sname string) []byte {
	tb.Helper()
	opts := types.NewKrbFlags()
	types.SetFlag(&opts, flags.APOptionMutualRequired)

	req := messages.APReq{
		PVNO:      5,
		MsgType:   msgtype.KRB_AP_REQ,
		APOptions: opts,
		Ticket: messages.Ticket{
			TktVNO: 5,
			Realm:  realm,
			SName:  types.NewPrincipalName(nametype.KRB_NT_SRV_INST, sname),
			EncPart: types.EncryptedData{
				EType:  etypeID.AES256_CTS_HMAC_SHA1_96,
				KVNO:   2,
				Cipher: []byte("ticket-cipher-filler"),
			},
		},
		EncryptedAuthenticator: types.EncryptedData{
			EType:  etypeID.AES256_CTS_HMAC_SHA1_96,
			Cipher: []byte("authenticator-cipher-filler"),
		},
	}
	b, err := req.Marshal()
	if err != nil {
		tb.Fatalf("marshal AP-REQ: %v", err)
	}
	return b
}
