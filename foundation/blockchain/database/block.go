package database

import (
	"errors"
	"fmt"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Version          int32  `json:"version"`           // Bitcoin: Block format version.
	PrevBlockHash    string `json:"previousBlockHash"` // Bitcoin: Hash of the previous block in the chain.
	MerkleRoot       string `json:"merkleRoot"`        // Bitcoin: Merkle root of the transactions in this block.
	TimeStamp        uint64 `json:"timestamp"`         // Bitcoin: Time the block was assembled.
	DifficultyTarget string `json:"difficultyTarget"`  // Bitcoin: The hash must be below this value.
	Nonce            uint64 `json:"nonce"`             // Bitcoin: Value identified to solve the hash solution.
}

// headerTemplate is the header without the nonce. This is what gets hashed
// along with the nonce during the proof of work search.
type headerTemplate struct {
	Version          int32  `json:"version"`
	PrevBlockHash    string `json:"previousBlockHash"`
	MerkleRoot       string `json:"merkleRoot"`
	TimeStamp        uint64 `json:"timestamp"`
	DifficultyTarget string `json:"difficultyTarget"`
}

// Encode returns the canonical encoding of the header including the nonce.
func (h BlockHeader) Encode() ([]byte, error) {
	if err := h.check(); err != nil {
		return nil, &EncodingError{Kind: "header", Err: err}
	}

	return encode("header", h)
}

// EncodeTemplate returns the canonical encoding of the header without the
// nonce.
func (h BlockHeader) EncodeTemplate() ([]byte, error) {
	if err := h.check(); err != nil {
		return nil, &EncodingError{Kind: "header", Err: err}
	}

	ht := headerTemplate{
		Version:          h.Version,
		PrevBlockHash:    h.PrevBlockHash,
		MerkleRoot:       h.MerkleRoot,
		TimeStamp:        h.TimeStamp,
		DifficultyTarget: h.DifficultyTarget,
	}

	return encode("header", ht)
}

// check validates the header fields can be represented.
func (h BlockHeader) check() error {
	if h.Version <= 0 {
		return fmt.Errorf("version must be positive, got %d", h.Version)
	}

	if err := checkHash("previous block hash", h.PrevBlockHash); err != nil {
		return err
	}

	if err := checkHash("difficulty target", h.DifficultyTarget); err != nil {
		return err
	}

	if h.MerkleRoot != "" {
		if err := checkHash("merkle root", h.MerkleRoot); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================

// Block represents a candidate block. The coinbase is always the first
// transaction of the block.
type Block struct {
	Header   BlockHeader
	Coinbase Tx
	Trans    []Tx
}

// Values returns the coinbase followed by the accepted transactions.
func (b Block) Values() []Tx {
	trans := make([]Tx, 0, len(b.Trans)+1)
	trans = append(trans, b.Coinbase)
	trans = append(trans, b.Trans...)

	return trans
}

// EncodeBody returns the canonical encoding of the coinbase followed by each
// transaction, concatenated in block order.
func (b Block) EncodeBody() ([]byte, error) {
	if len(b.Coinbase.Inputs) != 0 || len(b.Coinbase.Outputs) != 1 {
		return nil, &EncodingError{Kind: "coinbase", Err: errors.New("coinbase must have no inputs and one output")}
	}

	var body []byte
	for _, tx := range b.Values() {
		data, err := tx.Encode()
		if err != nil {
			return nil, err
		}
		body = append(body, data...)
	}

	return body, nil
}
