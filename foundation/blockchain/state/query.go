package state

import (
	"context"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
)

// RetrieveLatest returns a copy of the most recently mined block.
func (s *State) RetrieveLatest() (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return Result{}, ErrNoBlock
	}

	return *s.latest, nil
}

// QueryMinedCount returns the number of blocks mined so far.
func (s *State) QueryMinedCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mined
}

// QueryMempoolLength returns the current number of pending transactions.
func (s *State) QueryMempoolLength(ctx context.Context) (int, error) {
	handles, err := s.source.List(ctx)
	if err != nil {
		return 0, err
	}

	return len(handles), nil
}

// SubmitTx adds a transaction to the source when it can be written to and
// signals the worker to start mining. The transaction is only checked for
// an encodable shape here. Validation happens when the next block is mined.
func (s *State) SubmitTx(tx database.Tx) (int, error) {
	store, ok := s.source.(mempool.Store)
	if !ok {
		return 0, ErrReadOnly
	}

	data, err := tx.Encode()
	if err != nil {
		return 0, err
	}

	n, err := store.Upsert(tx.TxID+".json", data)
	if err != nil {
		return 0, err
	}

	s.evHandler("state: SubmitTx: tx[%s]: pending[%d]", tx, n)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return n, nil
}
