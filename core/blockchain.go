package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is the storage-wide sentinel for a missing record.
var ErrNotFound = errors.New("not found")

// BlockStore persists blocks. Implementations live in storage (LevelDB)
// and internal/testutil (in-memory).
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	PutBlock(block *Block) error
	GetBlockByHeight(height int64) (*Block, error)
	PutBlockByHeight(height int64, hash string) error
	// GetTip reports the tip hash; a fresh chain yields ("", nil).
	GetTip() (string, error)
	SetTip(hash string) error
	// CommitBlock writes block, height index, and tip pointer atomically.
	CommitBlock(block *Block) error
}

// Blockchain is the canonical chain: an append-only sequence of blocks with
// a cached tip.
type Blockchain struct {
	mu     sync.RWMutex
	store  BlockStore
	tip    *Block
	height int64
}

// NewBlockchain wraps store. Init must run before use to recover a
// previously persisted tip.
func NewBlockchain(store BlockStore) *Blockchain {
	return &Blockchain{store: store}
}

// Init recovers the tip from storage, if any.
func (bc *Blockchain) Init() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tipHash, err := bc.store.GetTip()
	if err != nil {
		return fmt.Errorf("get tip: %w", err)
	}
	if tipHash == "" {
		// Fresh chain; genesis arrives through AddBlock.
		return nil
	}
	tip, err := bc.store.GetBlock(tipHash)
	if err != nil {
		return fmt.Errorf("load tip block: %w", err)
	}
	bc.tip = tip
	bc.height = tip.Header.Height
	return nil
}

// AddBlock appends block to the chain after checking it extends the tip,
// then persists it and advances the cached tip.
func (bc *Blockchain) AddBlock(block *Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.tip != nil {
		switch {
		case block.Header.Height != bc.height+1:
			return fmt.Errorf("block height %d does not follow tip %d", block.Header.Height, bc.height)
		case block.Header.PrevHash != bc.tip.Hash:
			return fmt.Errorf("prev_hash mismatch: got %s want %s", block.Header.PrevHash, bc.tip.Hash)
		}
	}

	if err := bc.store.CommitBlock(block); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	bc.tip = block
	bc.height = block.Header.Height
	return nil
}

// GetBlock looks a block up by hash.
func (bc *Blockchain) GetBlock(hash string) (*Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.GetBlock(hash)
}

// GetBlockByHeight looks a block up by height.
func (bc *Blockchain) GetBlockByHeight(height int64) (*Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.GetBlockByHeight(height)
}

// Tip returns the newest block, nil for a fresh chain.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// Height returns the tip height, 0 for a fresh chain.
func (bc *Blockchain) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height
}
