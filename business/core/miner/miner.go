// Package miner wires the blockchain packages into a configured miner that
// the miner service and the admin tooling share.
package miner

import (
	"fmt"

	"github.com/ardanlabs/blockminer/foundation/blockchain/address"
	"github.com/ardanlabs/blockminer/foundation/blockchain/assembler"
	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pipeline"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pow"
	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
	"github.com/ardanlabs/blockminer/foundation/blockchain/state"
	"github.com/ardanlabs/blockminer/foundation/blockchain/validator"
)

// Config represents everything needed to build a miner. An empty MempoolDir
// selects an in memory pool. Clock and CoinbaseID are optional and exist so
// a block can be reproduced.
type Config struct {
	MempoolDir       string
	ReportPath       string
	RewardAddress    string
	RewardAmount     int64
	DifficultyTarget string
	PrevBlockHash    string
	Version          int32
	NonceCap         uint64
	AddressFamily    string
	Workers          int
	Prune            bool
	Chain            bool
	Clock            assembler.Clock
	CoinbaseID       assembler.IDSource
	EvHandler        func(v string, args ...any)
}

// Miner holds the constructed state along with the source it mines from.
type Miner struct {
	State  *state.State
	Source mempool.Source
}

// NewValidator constructs a transaction validator for the named address
// family using secp256k1 signatures.
func NewValidator(family string) (*validator.Validator, error) {
	addresses, err := address.Retrieve(family)
	if err != nil {
		return nil, err
	}

	return validator.New(validator.Config{
		Verifier:  signature.Secp256k1{},
		Addresses: addresses,
	})
}

// NewSource opens the folder based mempool or an empty memory pool when no
// folder is provided.
func NewSource(dir string) (mempool.Source, error) {
	if dir == "" {
		return mempool.NewMemory(), nil
	}

	disk, err := mempool.NewDisk(dir)
	if err != nil {
		return nil, fmt.Errorf("opening mempool folder: %w", err)
	}

	return disk, nil
}

// New constructs a miner for use.
func New(cfg Config) (*Miner, error) {
	v, err := NewValidator(cfg.AddressFamily)
	if err != nil {
		return nil, err
	}

	pl, err := pipeline.New(pipeline.Config{
		Validator: v,
		Workers:   cfg.Workers,
		EvHandler: cfg.EvHandler,
	})
	if err != nil {
		return nil, err
	}

	asm, err := assembler.New(assembler.Config{
		Version:          cfg.Version,
		PrevBlockHash:    cfg.PrevBlockHash,
		DifficultyTarget: cfg.DifficultyTarget,
		RewardAddress:    cfg.RewardAddress,
		RewardAmount:     cfg.RewardAmount,
		Clock:            cfg.Clock,
		CoinbaseID:       cfg.CoinbaseID,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring assembler: %w", err)
	}

	src, err := NewSource(cfg.MempoolDir)
	if err != nil {
		return nil, err
	}

	engine := pow.New(pow.Config{
		MaxNonces: cfg.NonceCap,
		Workers:   cfg.Workers,
		EvHandler: cfg.EvHandler,
	})

	st, err := state.New(state.Config{
		Source:     src,
		Pipeline:   pl,
		Assembler:  asm,
		Engine:     engine,
		ReportPath: cfg.ReportPath,
		Prune:      cfg.Prune,
		Chain:      cfg.Chain,
		EvHandler:  cfg.EvHandler,
	})
	if err != nil {
		return nil, err
	}

	return &Miner{State: st, Source: src}, nil
}
