// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// Verifier represents the behavior required to check that a signature was
// produced over a message by the holder of the given public key. All values
// are provided in the textual form found in transaction records.
type Verifier interface {
	Verify(publicKey string, message string, signature string) bool
}

// =============================================================================

// DoubleHash returns SHA-256 applied twice to the data.
func DoubleHash(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// =============================================================================

// Secp256k1 verifies signatures over the SHA-256 digest of a message using
// the secp256k1 curve. Public keys are hex encoded in compressed (33 byte) or
// uncompressed (65 byte) form. Signatures are hex encoded in the [R|S] or
// [R|S|V] format.
type Secp256k1 struct{}

// Verify implements the Verifier interface. Any decoding problem or failure
// inside the crypto package is reported as an invalid signature.
func (Secp256k1) Verify(publicKey string, message string, sig string) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			valid = false
		}
	}()

	if publicKey == "" || message == "" || sig == "" {
		return false
	}

	pub, err := decodeHex(publicKey)
	if err != nil {
		return false
	}

	rs, err := decodeHex(sig)
	if err != nil {
		return false
	}

	digest := sha256.Sum256([]byte(message))

	switch len(rs) {
	case crypto.RecoveryIDOffset:
	case crypto.SignatureLength:

		// The recovery id takes part in the signature, so the key it
		// recovers must be the key that was given.
		if rs[crypto.RecoveryIDOffset] > 1 || !recovers(pub, digest[:], rs) {
			return false
		}
		rs = rs[:crypto.RecoveryIDOffset]
	default:
		return false
	}

	return crypto.VerifySignature(pub, digest[:], rs)
}

// recovers reports whether the [R|S|V] signature recovers the public key.
func recovers(pub []byte, digest []byte, rsv []byte) bool {
	recovered, err := crypto.SigToPub(digest, rsv)
	if err != nil {
		return false
	}

	var expected *ecdsa.PublicKey
	switch len(pub) {
	case 33:
		expected, err = crypto.DecompressPubkey(pub)
	default:
		expected, err = crypto.UnmarshalPubkey(pub)
	}
	if err != nil {
		return false
	}

	return bytes.Equal(crypto.FromECDSAPub(expected), crypto.FromECDSAPub(recovered))
}

// =============================================================================

// decodeHex decodes hex text with or without the 0x prefix.
func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	return hexutil.Decode(s)
}
