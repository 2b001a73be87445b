// Package pipeline drives transaction validation over a pool of pending
// transactions and produces the ordered set accepted for the next block.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
	"github.com/ardanlabs/blockminer/foundation/blockchain/validator"
	"golang.org/x/sync/errgroup"
)

// IngestError is returned when the source can't be enumerated. This is
// fatal to the run.
type IngestError struct {
	Err error
}

// Error implements the error interface.
func (ie *IngestError) Error() string {
	return fmt.Sprintf("ingest: %s", ie.Err)
}

// Unwrap provides support for errors.Is and errors.As.
func (ie *IngestError) Unwrap() error {
	return ie.Err
}

// IsIngestError checks if an error of type IngestError exists.
func IsIngestError(err error) bool {
	var ie *IngestError
	return errors.As(err, &ie)
}

// ParseError describes a single raw transaction that could not be read,
// decoded, or encoded. The item is skipped.
type ParseError struct {
	Handle string
	Err    error
}

// Error implements the error interface.
func (pe ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", pe.Handle, pe.Err)
}

// Unwrap provides support for errors.Is and errors.As.
func (pe ParseError) Unwrap() error {
	return pe.Err
}

// =============================================================================

// Validator represents the behavior required to check a transaction.
type Validator interface {
	Validate(tx database.Tx) validator.Result
}

// Config represents the configuration for the pipeline. Workers defaults to
// the number of usable CPUs.
type Config struct {
	Validator Validator
	Workers   int
	EvHandler func(v string, args ...any)
}

// Outcome is the result of running the pipeline. Accepted is in the order
// the source enumerated the transactions and Handles holds the source handle
// for each accepted transaction at the same index.
type Outcome struct {
	Total         int
	Accepted      []database.Tx
	Handles       []string
	Rejected      []validator.Result
	ParseFailures []ParseError
}

// Pipeline validates pools of transactions.
type Pipeline struct {
	validator Validator
	workers   int
	evHandler func(v string, args ...any)
}

// New constructs a pipeline for use.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Validator == nil {
		return nil, errors.New("validator is required")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	p := Pipeline{
		validator: cfg.Validator,
		workers:   workers,
		evHandler: ev,
	}

	return &p, nil
}

// item holds the per transaction work product. Each one is only written by
// the goroutine that owns its index.
type item struct {
	tx       database.Tx
	result   validator.Result
	parseErr error
}

// Run reads and validates every transaction in the source. Validation runs
// concurrently but the accepted set keeps the enumeration order.
func (p *Pipeline) Run(ctx context.Context, src mempool.Source) (Outcome, error) {
	p.evHandler("pipeline: Run: started")
	defer p.evHandler("pipeline: Run: completed")

	handles, err := src.List(ctx)
	if err != nil {
		return Outcome{}, &IngestError{Err: err}
	}

	p.evHandler("pipeline: Run: pending transactions[%d]", len(handles))

	items := make([]item, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, handle := range handles {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			items[i] = p.process(gctx, src, handle)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}

	out := Outcome{
		Total: len(handles),
	}

	seen := make(map[string]struct{})

	for i, it := range items {
		switch {
		case it.parseErr != nil:
			perr := ParseError{Handle: handles[i], Err: it.parseErr}
			p.evHandler("pipeline: Run: WARNING: skipping: %s", perr)
			out.ParseFailures = append(out.ParseFailures, perr)

		case !it.result.Accepted():
			p.evHandler("pipeline: Run: tx[%s]", it.result)
			out.Rejected = append(out.Rejected, it.result)

		default:
			if _, exists := seen[it.tx.TxID]; exists {
				res := validator.Reject(it.tx.TxID, validator.ReasonDuplicate, "txid already accepted in this pool")
				p.evHandler("pipeline: Run: tx[%s]", res)
				out.Rejected = append(out.Rejected, res)
				continue
			}

			seen[it.tx.TxID] = struct{}{}
			out.Accepted = append(out.Accepted, it.tx)
			out.Handles = append(out.Handles, handles[i])
		}
	}

	p.evHandler("pipeline: Run: total[%d] accepted[%d] rejected[%d] unparsable[%d]", out.Total, len(out.Accepted), len(out.Rejected), len(out.ParseFailures))

	return out, nil
}

// process reads, decodes, and validates a single transaction.
func (p *Pipeline) process(ctx context.Context, src mempool.Source, handle string) item {
	tx, err := mempool.ReadTx(ctx, src, handle)
	if err != nil {
		return item{parseErr: err}
	}

	if _, err := tx.Encode(); err != nil {
		return item{parseErr: err}
	}

	return item{tx: tx, result: p.validator.Validate(tx)}
}
