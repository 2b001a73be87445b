// Package pow implements the proof of work search for a candidate block.
package pow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"golang.org/x/sync/errgroup"
)

// ErrSearchExhausted is returned when every nonce allowed by the configured
// cap was tried without solving the block.
var ErrSearchExhausted = errors.New("nonce cap reached without satisfying the target")

// ErrNotSolved is returned by Verify when the block's nonce does not satisfy
// the target.
var ErrNotSolved = errors.New("block hash does not satisfy the target")

// reportEvery is the number of attempts between progress events per worker.
const reportEvery = 1_000_000

// =============================================================================

// Config represents the configuration for the engine. MaxNonces caps the
// number of nonces tried, starting at zero. A zero value means no cap.
// Workers defaults to the number of usable cpus.
type Config struct {
	MaxNonces uint64
	Workers   int
	EvHandler func(v string, args ...any)
}

// Solution is the result of a successful search.
type Solution struct {
	Header   database.BlockHeader
	Digest   Digest
	Attempts uint64
}

// Engine performs the proof of work search.
type Engine struct {
	maxNonces uint64
	workers   int
	evHandler func(v string, args ...any)
}

// New constructs an engine for use.
func New(cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Engine{
		maxNonces: cfg.MaxNonces,
		workers:   workers,
		evHandler: ev,
	}
}

// Search tries nonces from zero upward until the block digest is below the
// difficulty target. The nonce space is striped across the workers and the
// lowest satisfying nonce wins, so the result matches a sequential search.
// On success the block's nonce is set to the winning value. The search polls
// the context between attempts.
func (e *Engine) Search(ctx context.Context, b *database.Block) (Solution, error) {
	target, err := ParseTarget(b.Header.DifficultyTarget)
	if err != nil {
		return Solution{}, err
	}

	e.evHandler("pow: Search: MINING: started: workers[%d]: target[%s]", e.workers, target)
	defer e.evHandler("pow: Search: MINING: completed")

	tmpl, err := NewTemplate(*b)
	if err != nil {
		return Solution{}, err
	}

	limit := uint64(math.MaxUint64)
	if e.maxNonces > 0 {
		limit = e.maxNonces
	}

	var best atomic.Uint64
	best.Store(math.MaxUint64)

	var attempts atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)

	stride := uint64(e.workers)
	for w := range e.workers {
		g.Go(func() error {
			h := tmpl.hasher()
			done := gctx.Done()

			var tried uint64
			defer func() {
				attempts.Add(tried)
			}()

			for nonce := uint64(w); nonce < limit; nonce += stride {
				select {
				case <-done:
					return gctx.Err()
				default:
				}

				// A lower nonce has already been found.
				if nonce > best.Load() {
					return nil
				}

				tried++
				if tried%reportEvery == 0 {
					e.evHandler("pow: Search: MINING: worker[%d]: attempts[%d]", w, tried)
				}

				if target.SatisfiedBy(h.hash(nonce)) {
					storeMin(&best, nonce)
					return nil
				}

				if limit-nonce <= stride {
					return nil
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.evHandler("pow: Search: MINING: CANCELLED")
		return Solution{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		e.evHandler("pow: Search: MINING: CANCELLED")
		return Solution{}, ctx.Err()
	}

	nonce := best.Load()
	if nonce == math.MaxUint64 {
		e.evHandler("pow: Search: MINING: EXHAUSTED: attempts[%d]", attempts.Load())
		return Solution{}, fmt.Errorf("tried %d nonces: %w", attempts.Load(), ErrSearchExhausted)
	}

	b.Header.Nonce = nonce

	sol := Solution{
		Header:   b.Header,
		Digest:   tmpl.Hash(nonce),
		Attempts: attempts.Load(),
	}

	e.evHandler("pow: Search: MINING: SOLVED: nonce[%d]: hash[%s]", nonce, sol.Digest)
	e.evHandler("pow: Search: MINING: attempts[%d]", sol.Attempts)

	return sol, nil
}

// Verify recomputes the digest for the block's nonce and checks it against
// the block's target.
func Verify(b database.Block) (Digest, error) {
	target, err := ParseTarget(b.Header.DifficultyTarget)
	if err != nil {
		return Digest{}, err
	}

	tmpl, err := NewTemplate(b)
	if err != nil {
		return Digest{}, err
	}

	d := tmpl.Hash(b.Header.Nonce)
	if !target.SatisfiedBy(d) {
		return d, fmt.Errorf("%s: %w", d, ErrNotSolved)
	}

	return d, nil
}

// storeMin lowers the stored value to n if n is smaller.
func storeMin(v *atomic.Uint64, n uint64) {
	for {
		cur := v.Load()
		if n >= cur || v.CompareAndSwap(cur, n) {
			return
		}
	}
}
