package state

import (
	"context"
	"time"

	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
	"github.com/ardanlabs/blockminer/foundation/blockchain/report"
)

// MineBlock runs one full mining operation. The pending transactions are
// validated, the accepted set is assembled into a candidate block, and the
// nonce search runs until the block is solved. An empty accepted set still
// produces a block holding only the coinbase. The operation can be cancelled
// through the context.
func (s *State) MineBlock(ctx context.Context) (Result, error) {
	s.mining.Lock()
	defer s.mining.Unlock()

	s.evHandler("state: MineBlock: MINING: started")
	defer s.evHandler("state: MineBlock: MINING: completed")

	t := time.Now()

	s.evHandler("state: MineBlock: MINING: validate mempool")

	out, err := s.pipeline.Run(ctx, s.source)
	if err != nil {
		return Result{}, err
	}

	s.evHandler("state: MineBlock: MINING: assemble block: trans[%d]", len(out.Accepted))

	block, err := s.assembler.Assemble(out.Accepted)
	if err != nil {
		return Result{}, err
	}

	s.evHandler("state: MineBlock: MINING: perform POW")

	sol, err := s.engine.Search(ctx, &block)
	if err != nil {
		return Result{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	data, err := report.Encode(block)
	if err != nil {
		return Result{}, err
	}

	if s.reportPath != "" {
		s.evHandler("state: MineBlock: MINING: write report: %s", s.reportPath)

		if err := report.WriteFile(s.reportPath, block); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Block:    block,
		Digest:   sol.Digest,
		Attempts: sol.Attempts,
		Outcome:  out,
		Report:   data,
	}

	s.updateLocalState(res)

	s.evHandler("state: MineBlock: MINING: block[%s]: nonce[%d]: duration[%v]", sol.Digest, block.Header.Nonce, time.Since(t))

	return res, nil
}

// updateLocalState records the mined block and applies the optional pruning
// and chaining of the next block.
func (s *State) updateLocalState(res Result) {
	s.mu.Lock()
	s.latest = &res
	s.mined++
	s.mu.Unlock()

	if s.chain {
		if err := s.assembler.SetPrevBlockHash(res.Digest.String()); err != nil {
			s.evHandler("state: updateLocalState: WARNING: chain: %s", err)
		}
	}

	if !s.prune {
		return
	}

	store, ok := s.source.(mempool.Store)
	if !ok {
		return
	}

	for _, handle := range res.Outcome.Handles {
		s.evHandler("state: updateLocalState: remove[%s]", handle)

		if err := store.Delete(handle); err != nil {
			s.evHandler("state: updateLocalState: WARNING: %s", err)
		}
	}
}
