package database

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TxIn represents an input of a transaction. The previous output reference
// is carried as received. Only IsCoinbase takes part in spend checking.
type TxIn struct {
	TxID       string `json:"txid"`        // Bitcoin: Transaction holding the output being spent.
	Vout       uint32 `json:"vout"`        // Bitcoin: Index of the output being spent.
	IsCoinbase bool   `json:"is_coinbase"` // Bitcoin: The output being spent came from a coinbase.
	PublicKey  string `json:"publicKey"`   // Hex encoded secp256k1 public key of the spender.
	Message    string `json:"message"`     // The payload that was signed.
	Signature  string `json:"signature"`   // Hex encoded signature over the message.
	Sequence   uint32 `json:"sequence"`    // Bitcoin: Input sequence number.
}

// TxOut represents an output of a transaction.
type TxOut struct {
	Address string `json:"scriptpubkey_address"` // Bitcoin: Destination address.
	Value   int64  `json:"value"`                // Bitcoin: Amount in satoshis.
}

// Tx represents a transaction as it's found in the mempool. The order of the
// inputs and outputs is significant and preserved.
type Tx struct {
	TxID    string  `json:"txid" validate:"required"`
	Inputs  []TxIn  `json:"vin" validate:"required,min=1"`
	Outputs []TxOut `json:"vout" validate:"required,min=1"`
}

// NewCoinbaseTx constructs the transaction crediting the block reward. It has
// no inputs and a single output.
func NewCoinbaseTx(txID string, address string, value int64) Tx {
	return Tx{
		TxID:    txID,
		Inputs:  []TxIn{},
		Outputs: []TxOut{{Address: address, Value: value}},
	}
}

// DecodeTx parses a raw transaction record.
func DecodeTx(data []byte) (Tx, error) {
	var tx Tx
	if err := json.Unmarshal(data, &tx); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// IsCoinbase reports whether the transaction has the shape of a coinbase.
func (tx Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 0 && len(tx.Outputs) == 1
}

// Encode returns the canonical encoding of the transaction. The fields are
// always written in the order txid, vin, vout and a nil input or output list
// is written as an empty list.
func (tx Tx) Encode() ([]byte, error) {
	if tx.TxID == "" {
		return nil, &EncodingError{Kind: "transaction", Err: errors.New("txid is empty")}
	}

	if tx.Inputs == nil {
		tx.Inputs = []TxIn{}
	}
	if tx.Outputs == nil {
		tx.Outputs = []TxOut{}
	}

	return encode("transaction", tx)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:in[%d]:out[%d]", tx.TxID, len(tx.Inputs), len(tx.Outputs))
}
