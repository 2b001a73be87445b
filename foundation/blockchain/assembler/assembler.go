// Package assembler constructs candidate blocks from the accepted set of
// transactions.
package assembler

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/merkle"
	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
	"github.com/google/uuid"
)

// Defaults used when the configuration leaves a value unset.
const (
	DefaultVersion          = 1
	DefaultDifficultyTarget = "0000ffff00000000000000000000000000000000000000000000000000000000"
)

// Clock represents the source of time for the block timestamp.
type Clock interface {
	Now() time.Time
}

// ClockFunc is an adapter to allow the use of ordinary functions as a Clock.
type ClockFunc func() time.Time

// Now implements the Clock interface.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements the Clock interface.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// IDSource produces the identifier for a coinbase transaction.
type IDSource func() (string, error)

// RandomID returns 16 random bytes hex encoded, generated as a version 4 uuid.
func RandomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(id[:]), nil
}

// =============================================================================

// Config represents the fixed values for every block this assembler builds.
type Config struct {
	Version          int32
	PrevBlockHash    string
	DifficultyTarget string
	RewardAddress    string
	RewardAmount     int64
	Clock            Clock
	CoinbaseID       IDSource
}

// Assembler builds candidate blocks. Timestamps never go backwards across
// blocks built by the same assembler.
type Assembler struct {
	cfg Config

	mu       sync.Mutex
	lastTime uint64
}

// New constructs an assembler for use.
func New(cfg Config) (*Assembler, error) {
	if cfg.Version == 0 {
		cfg.Version = DefaultVersion
	}

	if cfg.PrevBlockHash == "" {
		cfg.PrevBlockHash = signature.ZeroHash
	}

	if cfg.DifficultyTarget == "" {
		cfg.DifficultyTarget = DefaultDifficultyTarget
	}

	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	if cfg.CoinbaseID == nil {
		cfg.CoinbaseID = RandomID
	}

	if cfg.RewardAddress == "" {
		return nil, errors.New("reward address is required")
	}

	if cfg.RewardAmount <= 0 {
		return nil, fmt.Errorf("reward amount must be positive, got %d", cfg.RewardAmount)
	}

	// Make sure the fixed header values can be encoded before any block
	// is built.
	probe := database.BlockHeader{
		Version:          cfg.Version,
		PrevBlockHash:    cfg.PrevBlockHash,
		DifficultyTarget: cfg.DifficultyTarget,
	}
	if _, err := probe.Encode(); err != nil {
		return nil, err
	}

	return &Assembler{cfg: cfg}, nil
}

// Assemble constructs the candidate block for the specified transactions. The
// transactions are trusted to be validated already and their order is kept.
func (a *Assembler) Assemble(trans []database.Tx) (database.Block, error) {
	id, err := a.cfg.CoinbaseID()
	if err != nil {
		return database.Block{}, fmt.Errorf("generating coinbase id: %w", err)
	}

	coinbase := database.NewCoinbaseTx(id, a.cfg.RewardAddress, a.cfg.RewardAmount)

	body := make([]database.Tx, len(trans))
	copy(body, trans)

	nb := database.Block{
		Coinbase: coinbase,
		Trans:    body,
	}

	root, err := merkle.RootHex(nb.Values())
	if err != nil {
		return database.Block{}, err
	}

	nb.Header = database.BlockHeader{
		Version:          a.cfg.Version,
		PrevBlockHash:    a.prevBlockHash(),
		MerkleRoot:       root,
		TimeStamp:        a.timestamp(),
		DifficultyTarget: a.cfg.DifficultyTarget,
		Nonce:            0, // Will be identified by the POW engine.
	}

	return nb, nil
}

// SetPrevBlockHash changes the parent hash used for the blocks built after
// this call.
func (a *Assembler) SetPrevBlockHash(hash string) error {
	probe := database.BlockHeader{
		Version:          a.cfg.Version,
		PrevBlockHash:    hash,
		DifficultyTarget: a.cfg.DifficultyTarget,
	}
	if _, err := probe.Encode(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg.PrevBlockHash = hash

	return nil
}

func (a *Assembler) prevBlockHash() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.cfg.PrevBlockHash
}

// timestamp samples the clock once and clamps it to the last value handed out.
func (a *Assembler) timestamp() uint64 {
	now := a.cfg.Clock.Now().Unix()
	if now < 0 {
		now = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ts := uint64(now)
	if ts < a.lastTime {
		ts = a.lastTime
	}
	a.lastTime = ts

	return ts
}
