// Package consensus implements Proof-of-Authority block production: the
// configured validators take turns proposing, round-robin by height, and
// every block carries its proposer's signature.
package consensus

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/karuha/arenachain/config"
	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/crypto"
	"github.com/karuha/arenachain/events"
	"github.com/karuha/arenachain/vm"
)

const defaultBlockTxLimit = 500

// PoA drives block production for the local validator key.
type PoA struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
}

// New builds a PoA engine around the local validator identified by privKey.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
) *PoA {
	return &PoA{
		cfg:     cfg,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		pubKey:  privKey.Public(),
	}
}

// proposerAt returns which validator owns the slot for the given height.
func (p *PoA) proposerAt(height int64) string {
	return p.cfg.Validators[int(height)%len(p.cfg.Validators)]
}

// IsProposer reports whether the next slot belongs to this node.
func (p *PoA) IsProposer() bool {
	if len(p.cfg.Validators) == 0 {
		return false
	}
	return p.proposerAt(p.bc.Height()+1) == p.pubKey.Hex()
}

// ProduceBlock assembles the next block from the mempool, executes it,
// stores it and flushes state. Ordering matters: the state root is computed
// from the write buffer before anything is persisted, so a storage failure
// leaves both chain and state untouched.
func (p *PoA) ProduceBlock() (*core.Block, error) {
	if !p.IsProposer() {
		return nil, errors.New("not this node's slot")
	}

	limit := p.cfg.MaxBlockTxs
	if limit <= 0 {
		limit = defaultBlockTxLimit
	}
	txs := p.mempool.Pending(limit)

	prevHash := config.GenesisHash
	nextHeight := int64(1)
	if tip := p.bc.Tip(); tip != nil {
		prevHash = tip.Hash
		nextHeight = tip.Header.Height + 1
	}

	block := core.NewBlock(nextHeight, prevHash, p.pubKey.Hex(), txs)
	if err := p.exec.ExecuteBlock(block); err != nil {
		return nil, fmt.Errorf("execute block: %w", err)
	}

	block.Header.StateRoot = p.state.ComputeRoot()
	block.Sign(p.privKey)

	if err := p.bc.AddBlock(block); err != nil {
		return nil, fmt.Errorf("add block: %w", err)
	}
	if err := p.state.Commit(); err != nil {
		// The block is durable but its state is not; continuing would fork
		// this node against its own chain.
		log.Fatalf("[consensus] FATAL: block %d stored but state commit failed: %v",
			block.Header.Height, err)
	}

	p.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"hash": block.Hash, "txs": len(block.Transactions)},
	})

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	p.mempool.Remove(ids)

	return block, nil
}

// ValidateBlock checks proposer assignment, signature, and chain linkage
// for a block received from a peer.
func (p *PoA) ValidateBlock(block *core.Block) error {
	if len(p.cfg.Validators) == 0 {
		return errors.New("no validators configured")
	}
	if want := p.proposerAt(block.Header.Height); block.Header.Proposer != want {
		return fmt.Errorf("wrong proposer: got %s want %s", block.Header.Proposer, want)
	}

	pub, err := crypto.PubKeyFromHex(block.Header.Proposer)
	if err != nil {
		return fmt.Errorf("invalid proposer pubkey: %w", err)
	}
	if err := block.Verify(pub); err != nil {
		return fmt.Errorf("block signature invalid: %w", err)
	}

	tip := p.bc.Tip()
	switch {
	case tip == nil:
		if !config.IsGenesisHash(block.Header.PrevHash) {
			return errors.New("first block must link to the genesis hash")
		}
	case block.Header.PrevHash != tip.Hash:
		return fmt.Errorf("prev_hash mismatch: got %s want %s", block.Header.PrevHash, tip.Hash)
	case block.Header.Height != tip.Header.Height+1:
		return fmt.Errorf("height mismatch: got %d want %d", block.Header.Height, tip.Header.Height+1)
	}
	return nil
}

// Run produces a block every interval while this node holds the slot. It
// blocks until done is closed.
func (p *PoA) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !p.IsProposer() {
				continue
			}
			if _, err := p.ProduceBlock(); err != nil {
				log.Printf("[consensus] produce block: %v", err)
			}
		}
	}
}
