package pow

import (
	"encoding/hex"
	"fmt"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/holiman/uint256"
)

// Digest is the result of hashing a block for a given nonce. It's read as a
// big endian unsigned integer of database.HashLength bytes.
type Digest [database.HashLength]byte

// String implements the fmt.Stringer interface.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Target represents the difficulty target as a 256 bit unsigned integer.
type Target struct {
	value uint256.Int
}

// ParseTarget converts the hex representation of a target. The text must
// be exactly database.HashLength bytes of hex so the target and the digest
// have the same width.
func ParseTarget(s string) (Target, error) {
	if len(s) != 2*database.HashLength {
		return Target{}, fmt.Errorf("target must be %d hex characters, got %d", 2*database.HashLength, len(s))
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return Target{}, fmt.Errorf("target is not hex: %w", err)
	}

	var t Target
	t.value.SetBytes32(b)

	return t, nil
}

// SatisfiedBy reports whether the digest is numerically less than the
// target.
func (t Target) SatisfiedBy(d Digest) bool {
	return t.Cmp(d) < 0
}

// Cmp compares the digest with the target and returns -1, 0, or +1.
func (t Target) Cmp(d Digest) int {
	var v uint256.Int
	v.SetBytes32(d[:])

	return v.Cmp(&t.value)
}

// String implements the fmt.Stringer interface.
func (t Target) String() string {
	b := t.value.Bytes32()
	return hex.EncodeToString(b[:])
}
