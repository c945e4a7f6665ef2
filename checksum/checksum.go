// Package checksum computes and checks the RFC 3961 checksums carried in
// NEGOEX VERIFY messages. The decoder records checksums without looking at
// them; a consumer holding the session key uses this package.
package checksum

import (
	"errors"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/kardianos/negoex/negoex"
)

// Key usages for NEGOEX checksums.
const (
	KeyUsageInitiatorChecksum uint32 = 23
	KeyUsageAcceptorChecksum  uint32 = 25
)

var (
	ErrUnsupportedScheme = errors.New("checksum: unsupported checksum scheme")
	ErrMismatch          = errors.New("checksum: checksum mismatch")
	ErrNotVerify         = errors.New("checksum: message is not VERIFY")
)

// Compute returns the checksum of transcript using the RFC 3961 checksum
// type checksumType.
func Compute(key types.EncryptionKey, transcript []byte, checksumType uint32, usage uint32) ([]byte, error) {
	et, err := crypto.GetChksumEtype(int32(checksumType))
	if err != nil {
		return nil, fmt.Errorf("checksum: type %d: %w", checksumType, err)
	}
	sum, err := et.GetChecksumHash(key.KeyValue, transcript, usage)
	if err != nil {
		return nil, fmt.Errorf("checksum: compute type %d: %w", checksumType, err)
	}
	return sum, nil
}

// Verify checks the checksum of v against transcript.
func Verify(key types.EncryptionKey, transcript []byte, v *negoex.Verify, usage uint32) error {
	cs := v.Checksum
	if cs.Scheme != negoex.ChecksumSchemeRFC3961 {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, cs.Scheme)
	}
	et, err := crypto.GetChksumEtype(int32(cs.Type))
	if err != nil {
		return fmt.Errorf("checksum: type %d: %w", cs.Type, err)
	}
	if !et.VerifyChecksum(key.KeyValue, transcript, cs.Value.Bytes, usage) {
		return ErrMismatch
	}
	return nil
}

// VerifyResult checks the VERIFY message at index i of res. The transcript
// is every message before it.
func VerifyResult(key types.EncryptionKey, res *negoex.Result, i int, usage uint32) error {
	if i < 0 || i >= len(res.Messages) {
		return fmt.Errorf("checksum: no message %d", i)
	}
	v, ok := res.Messages[i].Body.(*negoex.Verify)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotVerify, res.Messages[i].Type)
	}
	return Verify(key, negoex.Transcript(res, i), v, usage)
}
