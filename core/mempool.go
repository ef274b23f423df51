package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	mempoolCap = 10_000
	// Accepted timestamp window relative to local clock.
	txMaxAge    = int64(time.Hour)
	txMaxFuture = int64(5 * time.Minute)
)

var (
	errPoolFull    = errors.New("mempool full")
	errDuplicateTx = errors.New("tx already in pool")
)

// Mempool holds verified transactions awaiting inclusion, in arrival order.
type Mempool struct {
	mu    sync.RWMutex
	byID  map[string]*Transaction
	queue []string
}

// NewMempool returns an empty pool.
func NewMempool() *Mempool {
	return &Mempool{byID: make(map[string]*Transaction)}
}

// Add admits tx after checking its signature and that its timestamp falls
// within the accepted window. Duplicates and overflow are rejected.
func (m *Mempool) Add(tx *Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("invalid tx signature: %w", err)
	}
	now := time.Now().UnixNano()
	if now-tx.Timestamp > txMaxAge {
		return errors.New("transaction expired")
	}
	if tx.Timestamp-now > txMaxFuture {
		return errors.New("transaction timestamp too far in the future")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.byID) >= mempoolCap {
		return errPoolFull
	}
	if _, dup := m.byID[tx.ID]; dup {
		return errDuplicateTx
	}
	m.byID[tx.ID] = tx
	m.queue = append(m.queue, tx.ID)
	return nil
}

// Get looks a pending transaction up by ID.
func (m *Mempool) Get(id string) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.byID[id]
	return tx, ok
}

// Pending returns up to n transactions in arrival order.
func (m *Mempool) Pending(n int) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, n)
	for _, id := range m.queue {
		tx, ok := m.byID[id]
		if !ok {
			continue
		}
		out = append(out, tx)
		if len(out) == n {
			break
		}
	}
	return out
}

// Remove drops the given IDs, typically after they were committed in a
// block.
func (m *Mempool) Remove(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(m.byID, id)
		gone[id] = true
	}
	kept := m.queue[:0]
	for _, id := range m.queue {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	m.queue = kept
}

// Size reports how many transactions are pending.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
