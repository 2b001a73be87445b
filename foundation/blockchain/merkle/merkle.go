// Package merkle calculates the merkle root for the transactions of a block.
// Leafs and nodes are hashed with SHA-256 applied twice and an odd node at
// any level is paired with itself.
package merkle

import (
	"encoding/hex"
	"errors"

	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
)

// Hashable represents the behavior concrete data must exhibit to be used as
// a leaf of the tree.
type Hashable interface {
	Encode() ([]byte, error)
}

// Root calculates the merkle root of the specified values in the order
// provided.
func Root[T Hashable](values []T) ([]byte, error) {
	if len(values) == 0 {
		return nil, errors.New("cannot construct tree with no content")
	}

	level := make([][32]byte, len(values))
	for i, value := range values {
		data, err := value.Encode()
		if err != nil {
			return nil, err
		}
		level[i] = signature.DoubleHash(data)
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			pair := make([]byte, 0, 64)
			pair = append(pair, level[i][:]...)
			pair = append(pair, level[i+1][:]...)
			next = append(next, signature.DoubleHash(pair))
		}
		level = next
	}

	return level[0][:], nil
}

// RootHex calculates the merkle root and returns it hex encoded.
func RootHex[T Hashable](values []T) (string, error) {
	root, err := Root(values)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(root), nil
}
