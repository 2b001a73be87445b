// Package mempool provides the sources of pending transactions for mining.
package mempool

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// Set of error variables for reading and writing a source.
var (
	ErrNotFound      = errors.New("transaction not found")
	ErrInvalidHandle = errors.New("invalid handle")
)

// Source represents the behavior required to be implemented by any package
// providing pending transactions. List returns the handles in the order
// the transactions should be considered for the block.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, handle string) ([]byte, error)
}

// Store represents a source that also accepts new transactions and can drop
// transactions once they are mined.
type Store interface {
	Source
	Upsert(handle string, data []byte) (int, error)
	Delete(handle string) error
}

// =============================================================================

// Memory represents an in memory pool of raw transactions that maintains
// insertion order. This implements the Source interface.
type Memory struct {
	mu    sync.RWMutex
	order []string
	pool  map[string][]byte
}

// NewMemory constructs a memory pool for use.
func NewMemory() *Memory {
	return &Memory{
		pool: make(map[string][]byte),
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Memory) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.order)
}

// Upsert adds or replaces a raw transaction. A replaced transaction keeps
// its original position.
func (mp *Memory) Upsert(handle string, data []byte) (int, error) {
	if err := checkHandle(handle); err != nil {
		return 0, err
	}

	cpy := make([]byte, len(data))
	copy(cpy, data)

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[handle]; !exists {
		mp.order = append(mp.order, handle)
	}
	mp.pool[handle] = cpy

	return len(mp.order), nil
}

// Delete removes a transaction from the pool.
func (mp *Memory) Delete(handle string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[handle]; !exists {
		return fmt.Errorf("handle %q: %w", handle, ErrNotFound)
	}
	delete(mp.pool, handle)

	for i, h := range mp.order {
		if h == handle {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}

	return nil
}

// Truncate clears all the transactions from the pool.
func (mp *Memory) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.order = nil
	mp.pool = make(map[string][]byte)
}

// List implements the Source interface.
func (mp *Memory) List(ctx context.Context) ([]string, error) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	handles := make([]string, len(mp.order))
	copy(handles, mp.order)

	return handles, nil
}

// Read implements the Source interface.
func (mp *Memory) Read(ctx context.Context, handle string) ([]byte, error) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	data, exists := mp.pool[handle]
	if !exists {
		return nil, fmt.Errorf("handle %q: %w", handle, ErrNotFound)
	}

	cpy := make([]byte, len(data))
	copy(cpy, data)

	return cpy, nil
}

// checkHandle makes sure the handle can name a file directly in a folder.
func checkHandle(handle string) error {
	if handle == "" || handle[0] == '.' || filepath.Base(handle) != handle {
		return fmt.Errorf("handle %q is not a file name: %w", handle, ErrInvalidHandle)
	}

	return nil
}
