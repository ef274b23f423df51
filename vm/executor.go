// Package vm executes transactions. Each transaction type is implemented
// by a module under vm/modules that registers a Handler for its TxType;
// the Executor does the shared work of signature, chain, nonce and fee
// checks, and makes each transaction atomic via state snapshots.
package vm

import (
	"fmt"
	"math"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/events"
)

// Context is what a Handler sees: chain identity, mutable state, the
// enclosing block, the triggering transaction, and the event emitter.
// Handlers that verify off-chain attestations fold ChainID into the
// signed digest so signatures cannot be replayed across networks.
type Context struct {
	ChainID string
	State   core.State
	Block   *core.Block
	Tx      *core.Transaction
	Emitter *events.Emitter
}

// Executor applies transactions through the global handler registry.
type Executor struct {
	chainID string
	state   core.State
	emitter *events.Emitter
}

// NewExecutor builds an Executor bound to one chain, one state, and one
// emitter.
func NewExecutor(chainID string, state core.State, emitter *events.Emitter) *Executor {
	return &Executor{chainID: chainID, state: state, emitter: emitter}
}

// ExecuteBlock runs every transaction in order. One failure rejects the
// whole block; the consensus layer emits the block-commit event itself
// after signing, when the final hash is known.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	for _, tx := range block.Transactions {
		if err := e.ExecuteTx(block, tx); err != nil {
			return fmt.Errorf("tx %s failed: %w", tx.ID, err)
		}
	}
	return nil
}

// ExecuteTx runs one transaction atomically: any failure inside the
// handler rolls state back to the pre-tx snapshot.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if tx.ChainID != e.chainID {
		return fmt.Errorf("chain ID mismatch: got %q want %q", tx.ChainID, e.chainID)
	}

	snap, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if err := e.apply(block, tx); err != nil {
		if revErr := e.state.RevertToSnapshot(snap); revErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revErr)
		}
		return err
	}

	if e.emitter != nil {
		e.emitter.Emit(events.Event{
			Type:        events.EventTxExecuted,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return nil
}

// apply charges the fee, bumps the nonce, then hands off to the module
// handler.
func (e *Executor) apply(block *core.Block, tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	switch {
	case acc.Nonce != tx.Nonce:
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	case acc.Balance < tx.Fee:
		return fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	case acc.Nonce == math.MaxUint64:
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	return globalRegistry.Execute(tx.Type, &Context{
		ChainID: e.chainID,
		State:   e.state,
		Block:   block,
		Tx:      tx,
		Emitter: e.emitter,
	}, tx.Payload)
}
