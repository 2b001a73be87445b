package public

import (
	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/state"
)

type rejection struct {
	TxID   string `json:"txid"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type unparsable struct {
	Handle string `json:"handle"`
	Error  string `json:"error"`
}

type block struct {
	Hash          string               `json:"hash"`
	Attempts      uint64               `json:"attempts"`
	Header        database.BlockHeader `json:"header"`
	Coinbase      database.Tx          `json:"coinbase"`
	TxIDs         []string             `json:"txids"`
	Total         int                  `json:"total"`
	Rejected      []rejection          `json:"rejected"`
	ParseFailures []unparsable         `json:"parseFailures"`
}

func toBlock(res state.Result) block {
	txids := make([]string, len(res.Block.Trans))
	for i, tx := range res.Block.Trans {
		txids[i] = tx.TxID
	}

	rejected := make([]rejection, len(res.Outcome.Rejected))
	for i, r := range res.Outcome.Rejected {
		rejected[i] = rejection{TxID: r.TxID, Reason: string(r.Reason), Detail: r.Detail}
	}

	failures := make([]unparsable, len(res.Outcome.ParseFailures))
	for i, pf := range res.Outcome.ParseFailures {
		failures[i] = unparsable{Handle: pf.Handle, Error: pf.Err.Error()}
	}

	return block{
		Hash:          res.Digest.String(),
		Attempts:      res.Attempts,
		Header:        res.Block.Header,
		Coinbase:      res.Block.Coinbase,
		TxIDs:         txids,
		Total:         res.Outcome.Total,
		Rejected:      rejected,
		ParseFailures: failures,
	}
}
