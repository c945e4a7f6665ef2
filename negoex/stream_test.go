package negoex_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardianos/negoex/internal/negoextest"
	"github.com/kardianos/negoex/negoex"
	"github.com/kardianos/negoex/negoexlog"
	"github.com/kardianos/negoex/pku2u"
	"github.com/kardianos/negoex/wire"
)

var (
	schemePKU2U = wire.MustParseGUID("235f69ad-73fb-4dbc-8203-0629e739339b")
	schemeOther = wire.MustParseGUID("0d53335c-f9ea-4d0d-b2ec-4ae3786ec308")
)

func random(seed byte) [32]byte {
	var r [32]byte
	for i := range r {
		r[i] = seed + byte(i)
	}
	return r
}

func putUint32(b []byte, off int, v uint32) []byte {
	b = bytes.Clone(b)
	binary.LittleEndian.PutUint32(b[off:], v)
	return b
}

func putUint16(b []byte, off int, v uint16) []byte {
	b = bytes.Clone(b)
	binary.LittleEndian.PutUint16(b[off:], v)
	return b
}

// fullStream has one message of every body shape.
func fullStream(t *testing.T) []byte {
	token := negoextest.GSSToken(t,
		negoextest.Identity(t, 0, pku2u.OIDPKU2U, true, pku2u.OIDKerberos5),
		negoextest.APReq(t, "EXAMPLE.COM", "cifs/fs1.example.com"))
	return negoextest.Stream(
		negoextest.Nego(negoextest.InitiatorNego, 0, random(1), 0, []wire.GUID{schemePKU2U, schemeOther}, [][]byte{{0xaa, 0xbb}}),
		negoextest.Exchange(negoextest.InitiatorMetaData, 1, schemePKU2U, []byte{0x30, 0x00}),
		negoextest.Nego(negoextest.AcceptorNego, 2, random(2), 0, []wire.GUID{schemePKU2U}, nil),
		negoextest.Exchange(negoextest.APRequest, 3, schemePKU2U, token),
		negoextest.VerifyMessage(4, schemePKU2U, 16, bytes.Repeat([]byte{0x5a}, 12)),
		negoextest.AlertMessage(5, schemePKU2U, 0xc000035c, []byte{1, 0, 0, 0}),
	)
}

func TestDecodeNegoVerify(t *testing.T) {
	cksum := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	stream := negoextest.Stream(
		negoextest.Nego(negoextest.InitiatorNego, 0, random(7), 0, []wire.GUID{schemePKU2U}, nil),
		negoextest.VerifyMessage(1, schemePKU2U, 16, cksum),
	)

	res := negoex.DecodeBytes(stream)
	require.NoError(t, res.Err)
	assert.Equal(t, negoex.Complete, res.State)
	assert.Equal(t, len(stream), res.Offset)
	require.Len(t, res.Messages, 2)

	nego, ok := res.Messages[0].Body.(*negoex.Nego)
	require.True(t, ok, "first body is %T", res.Messages[0].Body)
	assert.Equal(t, []wire.GUID{schemePKU2U}, nego.AuthSchemes)
	assert.Equal(t, random(7), nego.Random)
	assert.Empty(t, nego.Extensions)
	assert.Equal(t, negoextest.Conversation, res.Messages[0].ConversationID)

	verify, ok := res.Messages[1].Body.(*negoex.Verify)
	require.True(t, ok, "second body is %T", res.Messages[1].Body)
	assert.Equal(t, negoex.ChecksumSchemeRFC3961, verify.Checksum.Scheme)
	assert.Equal(t, "rfc3961", verify.Checksum.Scheme.String())
	assert.Equal(t, uint32(16), verify.Checksum.Type)
	assert.Equal(t, uint32(20), verify.Checksum.HeaderLength)
	assert.Equal(t, cksum, verify.Checksum.Value.Bytes)
	assert.Equal(t, schemePKU2U, verify.AuthScheme)

	assert.Equal(t, "INITIATOR_NEGO, VERIFY", res.Summary())
}

func TestDecodeContiguousMessages(t *testing.T) {
	stream := fullStream(t)
	res := negoex.DecodeBytes(stream)
	require.NoError(t, res.Err)
	require.Equal(t, negoex.Complete, res.State)
	require.Len(t, res.Messages, 6)

	next, total := 0, 0
	for i, m := range res.Messages {
		assert.Equal(t, next, m.Offset, "message %d start", i)
		assert.Equal(t, uint32(i), m.Sequence)
		assert.Len(t, m.Raw, int(m.MessageLength))
		next = m.End()
		total += int(m.MessageLength)
	}
	assert.Equal(t, len(stream), total)
	assert.Equal(t, "INITIATOR_NEGO, INITIATOR_META_DATA, ACCEPTOR_NEGO, AP_REQUEST, VERIFY, ALERT", res.Summary())
}

func TestDecodeTruncatedCapture(t *testing.T) {
	stream := fullStream(t)
	for n := 0; n < len(stream); n++ {
		res := negoex.DecodeStream(wire.NewBuffer(stream[:n], len(stream)))
		require.Equal(t, negoex.Truncated, res.State, "captured %d of %d: %v", n, len(stream), res.Err)
		require.ErrorIs(t, res.Err, wire.ErrOutOfBounds)
		for _, m := range res.Messages {
			require.LessOrEqual(t, m.End(), n, "captured %d", n)
		}
	}
}

func TestDecodeShortStream(t *testing.T) {
	stream := fullStream(t)
	full := negoex.DecodeBytes(stream)
	ends := map[int]int{0: 0}
	for i, m := range full.Messages {
		ends[m.End()] = i + 1
	}

	for n := 0; n < len(stream); n++ {
		res := negoex.DecodeBytes(stream[:n])
		if count, ok := ends[n]; ok {
			assert.Equal(t, negoex.Complete, res.State, "length %d", n)
			assert.Len(t, res.Messages, count, "length %d", n)
			continue
		}
		assert.Equal(t, negoex.Truncated, res.State, "length %d: %v", n, res.Err)
	}
}

func TestDecodeAuthSchemeCounts(t *testing.T) {
	tests := []struct {
		name    string
		schemes []wire.GUID
	}{
		{"none", nil},
		{"one", []wire.GUID{schemePKU2U}},
		{"three", []wire.GUID{schemePKU2U, schemeOther, {0x01, 0x02}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := negoextest.Nego(negoextest.AcceptorNego, 0, random(0), 0, tt.schemes, nil)
			res := negoex.DecodeBytes(msg)
			require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
			nego := res.Messages[0].Body.(*negoex.Nego)
			assert.Equal(t, uint16(len(tt.schemes)), nego.AuthSchemeVector.Count)
			require.Len(t, nego.AuthSchemes, len(tt.schemes))
			for i, g := range tt.schemes {
				assert.Equal(t, g, nego.AuthSchemes[i])
			}
		})
	}
}

func TestDecodeNegoExtensions(t *testing.T) {
	exts := [][]byte{{0x01, 0x02, 0x03}, {0x04}}
	msg := negoextest.Nego(negoextest.InitiatorNego, 0, random(0), 0, []wire.GUID{schemePKU2U}, exts)
	res := negoex.DecodeBytes(msg)
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)

	nego := res.Messages[0].Body.(*negoex.Nego)
	assert.Equal(t, uint32(96+16), nego.ExtensionVector.ArrayOffset)
	assert.Equal(t, "2 at 112", nego.ExtensionVector.String())
	require.Len(t, nego.Extensions, 2)
	assert.Equal(t, exts[0], nego.Extensions[0].Data.Bytes)
	assert.Equal(t, exts[1], nego.Extensions[1].Data.Bytes)
	assert.Equal(t, 112, nego.Extensions[0].Vector.Offset)
	assert.Equal(t, 128, nego.Extensions[0].Data.Offset)
}

func TestDecodeVectorOutsideMessage(t *testing.T) {
	msg := negoextest.Nego(negoextest.InitiatorNego, 0, random(0), 0, []wire.GUID{schemePKU2U}, nil)
	// Claim 4096 auth schemes.
	bad := putUint16(msg, 40+32+8+4, 4096)

	res := negoex.DecodeBytes(bad)
	assert.Equal(t, negoex.Malformed, res.State)
	assert.Empty(t, res.Messages)
	var bde *negoex.BodyDecodeError
	require.ErrorAs(t, res.Err, &bde, "%v", res.Err)
	assert.Equal(t, negoex.MessageInitiatorNego, bde.MessageType)
	assert.ErrorIs(t, res.Err, wire.ErrOutOfBounds)

	// The same message with an offset far past its end.
	bad = putUint32(msg, 40+32+8, 0xfffffff0)
	res = negoex.DecodeBytes(bad)
	assert.Equal(t, negoex.Malformed, res.State)
}

func TestDecodeExchangeIdentity(t *testing.T) {
	identity := negoextest.Identity(t, 0, pku2u.OIDPKU2U, true, pku2u.OIDKerberos5)
	apreq := negoextest.APReq(t, "EXAMPLE.COM", "host/server.example.com")
	token := negoextest.GSSToken(t, identity, apreq)
	msg := negoextest.Exchange(negoextest.APRequest, 0, schemePKU2U, token)

	res := negoex.DecodeBytes(msg)
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
	ex := res.Messages[0].Body.(*negoex.Exchange)
	assert.Equal(t, schemePKU2U, ex.AuthScheme)
	assert.Equal(t, token, ex.Token.Bytes)
	assert.Equal(t, 64, ex.Token.Offset)
	require.NoError(t, ex.IdentityErr)
	require.False(t, ex.Opaque())

	app := ex.Identity
	assert.Equal(t, pku2u.OIDPKU2U, app.OID.Value)
	assert.Equal(t, pku2u.OIDKerberos5, app.KerberosOID.Value)
	assert.True(t, app.Flag)
	require.NotNil(t, app.APReq, "%v", app.KerberosErr)
	assert.Equal(t, "host/server.example.com", app.APReq.ServiceName)
	assert.Equal(t, len(msg)-len(apreq), app.Trailer.Offset)

	// Same bytes, leading identifier changed to UNIVERSAL 4.
	opaque := bytes.Clone(msg)
	opaque[64] = 0x04
	res = negoex.DecodeBytes(opaque)
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
	ex = res.Messages[0].Body.(*negoex.Exchange)
	assert.True(t, ex.Opaque())
	assert.NoError(t, ex.IdentityErr)
	assert.Equal(t, opaque[64:], ex.Token.Bytes)
}

func TestDecodeExchangeBadIdentity(t *testing.T) {
	// An OCTET STRING where the Applications CHOICE belongs.
	token := negoextest.GSSToken(t, []byte{0x04, 0x01, 0x00}, nil)
	msg := negoextest.Stream(
		negoextest.Exchange(negoextest.Challenge, 0, schemePKU2U, token),
		negoextest.AlertMessage(1, schemePKU2U, 1, nil),
	)

	res := negoex.DecodeBytes(msg)
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
	require.Len(t, res.Messages, 2)
	ex := res.Messages[0].Body.(*negoex.Exchange)
	assert.True(t, ex.Opaque())
	assert.ErrorIs(t, ex.IdentityErr, pku2u.ErrUnrecognizedChoice)
	assert.Equal(t, token, ex.Token.Bytes)
}

func TestDecodeExchangeBadGSSHeader(t *testing.T) {
	// [APPLICATION 0] whose mechanism OID claims more bytes than the token.
	token := []byte{0x60, 0x04, 0x06, 0x7f, 0x2b, 0x06}
	res := negoex.DecodeBytes(negoextest.Exchange(negoextest.AcceptorMetaData, 0, schemePKU2U, token))
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
	ex := res.Messages[0].Body.(*negoex.Exchange)
	assert.True(t, ex.Opaque())
	assert.Error(t, ex.IdentityErr)
}

func TestDecodeEmptyExchange(t *testing.T) {
	res := negoex.DecodeBytes(negoextest.Exchange(negoextest.InitiatorMetaData, 0, schemeOther, nil))
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
	ex := res.Messages[0].Body.(*negoex.Exchange)
	assert.True(t, ex.Opaque())
	assert.Zero(t, ex.Token.Length)
}

func TestDecodeSignatureMismatch(t *testing.T) {
	stream := fullStream(t)
	bad := bytes.Clone(stream)
	copy(bad, "NEGOEXTZ")

	res := negoex.DecodeBytes(bad)
	assert.Equal(t, negoex.Malformed, res.State)
	assert.Empty(t, res.Messages)
	assert.Equal(t, 0, res.Offset)
	assert.ErrorIs(t, res.Err, negoex.ErrSignatureMismatch)
	assert.ErrorIs(t, res.Err, negoex.ErrMalformed)
}

func TestDecodeUnknownType(t *testing.T) {
	first := negoextest.Nego(negoextest.InitiatorNego, 0, random(0), 0, []wire.GUID{schemePKU2U}, nil)
	unknown := putUint32(negoextest.AlertMessage(1, schemePKU2U, 0, nil), 8, 99)
	last := negoextest.VerifyMessage(2, schemePKU2U, 16, []byte{1, 2, 3})
	stream := negoextest.Stream(first, unknown, last)

	res := negoex.DecodeBytes(stream)
	assert.Equal(t, negoex.UnknownType, res.State)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, len(first), res.Offset)
	assert.ErrorIs(t, res.Err, negoex.ErrUnknownMessageType)

	var ute *negoex.UnknownTypeError
	require.ErrorAs(t, res.Err, &ute)
	assert.Equal(t, negoex.MessageType(99), ute.Type)
	assert.Equal(t, len(first), ute.Offset)
	assert.Equal(t, len(unknown)+len(last), ute.Remaining)
	assert.Equal(t, "Unknown (99)", ute.Type.String())
}

func TestDecodeShortMessageLength(t *testing.T) {
	msg := putUint32(negoextest.AlertMessage(0, schemePKU2U, 0, nil), 20, 39)
	res := negoex.DecodeBytes(msg)
	assert.Equal(t, negoex.Malformed, res.State)
	assert.ErrorIs(t, res.Err, negoex.ErrMalformed)
}

func TestDecodeMessageShorterThanBody(t *testing.T) {
	// A VERIFY that claims only its header; the body reads run past the
	// message even though the bytes are present in the buffer.
	msg := negoextest.VerifyMessage(0, schemePKU2U, 16, []byte{1, 2, 3, 4})
	stream := putUint32(msg, 20, 40)

	res := negoex.DecodeBytes(stream)
	assert.Equal(t, negoex.Malformed, res.State)
	var bde *negoex.BodyDecodeError
	require.ErrorAs(t, res.Err, &bde, "%v", res.Err)
	assert.Equal(t, negoex.MessageVerify, bde.MessageType)
}

func TestDecodeMaxMessages(t *testing.T) {
	alert := negoextest.AlertMessage(0, schemePKU2U, 0, nil)
	stream := negoextest.Stream(alert, alert, alert)

	cfg := negoex.DefaultConfig()
	cfg.MaxMessages = 2
	res := negoex.NewDecoder(cfg).DecodeBytes(stream)
	assert.Equal(t, negoex.Malformed, res.State)
	assert.Len(t, res.Messages, 2)
	assert.Equal(t, 2*len(alert), res.Offset)
	assert.ErrorIs(t, res.Err, negoex.ErrMalformed)
}

func TestDecodeManyMessagesComplete(t *testing.T) {
	const n = 1500
	msgs := make([][]byte, n)
	for i := range msgs {
		msgs[i] = negoextest.AlertMessage(uint32(i), schemePKU2U, 0, nil)
	}
	stream := negoextest.Stream(msgs...)

	res := negoex.DecodeBytes(stream)
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
	assert.Len(t, res.Messages, n)
	assert.Equal(t, len(stream), res.Offset)

	total := 0
	for _, m := range res.Messages {
		total += int(m.MessageLength)
	}
	assert.Equal(t, len(stream), total)
}

func TestDecodeAlert(t *testing.T) {
	rest := []byte{0x10, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	res := negoex.DecodeBytes(negoextest.AlertMessage(3, schemeOther, 0xc000035c, rest))
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)

	alert := res.Messages[0].Body.(*negoex.Alert)
	assert.Equal(t, schemeOther, alert.AuthScheme)
	assert.Equal(t, uint32(0xc000035c), alert.ErrorCode)
	assert.Equal(t, rest, alert.Data.Bytes)
	assert.Equal(t, 60, alert.Data.Offset)
	assert.Equal(t, "ALERT_TYPE_PULSE", negoex.AlertTypeName(negoex.AlertTypePulse))
	assert.Equal(t, "ALERT_VERIFY_NO_KEY", negoex.AlertReasonName(negoex.AlertVerifyNoKey))
	assert.Equal(t, "Unknown (9)", negoex.AlertReasonName(9))
}

func TestDecodeEmpty(t *testing.T) {
	res := negoex.DecodeBytes(nil)
	assert.Equal(t, negoex.Complete, res.State)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Messages)
	assert.Equal(t, "", res.Summary())
}

func TestDecodeAbsoluteOffsets(t *testing.T) {
	stream := fullStream(t)
	outer := append(bytes.Repeat([]byte{0xff}, 10), stream...)
	sub, err := wire.FromBytes(outer).Sub(10, len(stream))
	require.NoError(t, err)

	res := negoex.DecodeStream(sub)
	require.Equal(t, negoex.Complete, res.State, "%v", res.Err)
	assert.Equal(t, 10, res.Messages[0].Offset)
	assert.Equal(t, 10+len(stream), res.Offset)
	nego := res.Messages[0].Body.(*negoex.Nego)
	assert.Equal(t, 10+40+32+8, nego.AuthSchemeVector.Offset)
}

func TestTranscript(t *testing.T) {
	stream := fullStream(t)
	res := negoex.DecodeBytes(stream)
	require.Equal(t, negoex.Complete, res.State)

	first := res.Messages[0]
	assert.Equal(t, stream[:first.MessageLength], negoex.Transcript(res, 1))
	assert.Equal(t, stream, negoex.Transcript(res, 100))
	assert.Empty(t, negoex.Transcript(res, 0))
}

func TestDecodeLogging(t *testing.T) {
	var out bytes.Buffer
	log := negoexlog.New(&out)
	log.SetVerbosity(negoexlog.LevelTrace)

	cfg := negoex.DefaultConfig()
	cfg.Logger = log
	negoex.NewDecoder(cfg).DecodeBytes(fullStream(t))

	s := out.String()
	assert.Contains(t, s, "[message] INITIATOR_NEGO seq 0 at 0")
	assert.Contains(t, s, "[stream] Complete: 6 messages")
	assert.Contains(t, s, "skipped mechanism OID")
	assert.Contains(t, s, "[message] seq 0 bytes:\n00000000  4e 45 47 4f 45 58 54 53")
}

func TestDecodeLoggingMalformed(t *testing.T) {
	var out bytes.Buffer
	log := negoexlog.New(&out)
	log.SetVerbosity(negoexlog.LevelError)

	cfg := negoex.DefaultConfig()
	cfg.Logger = log
	stream := negoextest.AlertMessage(0, schemePKU2U, 0, nil)
	copy(stream, "NOTNEGOX")
	res := negoex.NewDecoder(cfg).DecodeBytes(stream)
	require.Equal(t, negoex.Malformed, res.State)
	assert.Contains(t, out.String(), "[stream] Malformed after 0 messages")

	out.Reset()
	full := fullStream(t)
	res = negoex.NewDecoder(cfg).DecodeBytes(full[:len(full)-1])
	require.Equal(t, negoex.Truncated, res.State)
	assert.Empty(t, out.String(), "truncation logged at error level")
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "INITIATOR_NEGO", negoex.MessageInitiatorNego.String())
	assert.Equal(t, "VERIFY", negoex.MessageVerify.String())
	assert.Equal(t, "ALERT", negoex.MessageAlert.String())
	assert.Equal(t, negoex.MessageAlert, negoex.MaxMessageType)
	assert.True(t, negoex.MessageChallenge.Known())
	assert.False(t, negoex.MessageType(8).Known())
	assert.Equal(t, "Unknown (2)", negoex.ChecksumScheme(2).String())
}
