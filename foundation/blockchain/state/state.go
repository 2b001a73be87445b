// Package state is the core API for the miner and ties the validation
// pipeline, block assembly, proof of work, and report output together.
package state

import (
	"errors"
	"sync"

	"github.com/ardanlabs/blockminer/foundation/blockchain/assembler"
	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pipeline"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pow"
)

// ErrNoBlock is returned when a block is requested before one was mined.
var ErrNoBlock = errors.New("no block has been mined")

// ErrReadOnly is returned when a transaction is submitted to a source that
// can't be written to.
var ErrReadOnly = errors.New("mempool source is read only")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of mining blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for running mining operations in the background.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to mine blocks. When
// ReportPath is empty the report is only kept in memory. Prune removes mined
// transactions from the source and Chain links every new block to the one
// mined before it.
type Config struct {
	Source     mempool.Source
	Pipeline   *pipeline.Pipeline
	Assembler  *assembler.Assembler
	Engine     *pow.Engine
	ReportPath string
	Prune      bool
	Chain      bool
	EvHandler  EventHandler
}

// Result is everything known about a mined block.
type Result struct {
	Block    database.Block
	Digest   pow.Digest
	Attempts uint64
	Outcome  pipeline.Outcome
	Report   []byte
}

// State manages the mining of blocks.
type State struct {
	source     mempool.Source
	pipeline   *pipeline.Pipeline
	assembler  *assembler.Assembler
	engine     *pow.Engine
	reportPath string
	prune      bool
	chain      bool
	evHandler  EventHandler

	mu     sync.RWMutex
	latest *Result
	mined  uint64

	// Only one block is mined at a time.
	mining sync.Mutex

	Worker Worker
}

// New constructs a state for mining.
func New(cfg Config) (*State, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("mempool source is required")
	case cfg.Pipeline == nil:
		return nil, errors.New("pipeline is required")
	case cfg.Assembler == nil:
		return nil, errors.New("assembler is required")
	case cfg.Engine == nil:
		return nil, errors.New("pow engine is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	state := State{
		source:     cfg.Source,
		pipeline:   cfg.Pipeline,
		assembler:  cfg.Assembler,
		engine:     cfg.Engine,
		reportPath: cfg.ReportPath,
		prune:      cfg.Prune,
		chain:      cfg.Chain,
		evHandler:  ev,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// when the miner runs as a service.

	return &state, nil
}

// Shutdown stops any background mining.
func (s *State) Shutdown() error {
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}
