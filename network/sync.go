package network

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/karuha/arenachain/core"
)

// syncBatch is how many blocks one request asks for; a peer may not return
// more than syncBatchMax regardless of what was requested.
const (
	syncBatch    = 50
	syncBatchMax = 200
)

// GetBlocksRequest asks a peer for up to Limit blocks from FromHeight.
type GetBlocksRequest struct {
	FromHeight int64 `json:"from_height"`
	Limit      int   `json:"limit"`
}

// BlocksResponse answers a GetBlocksRequest.
type BlocksResponse struct {
	Blocks []*core.Block `json:"blocks"`
}

// BlockValidator vets a block before it enters the chain.
type BlockValidator interface {
	ValidateBlock(block *core.Block) error
}

// BlockExecutor replays a block's transactions against local state.
type BlockExecutor interface {
	ExecuteBlock(block *core.Block) error
}

// Syncer pulls missing blocks from peers and replays them. Without exec and
// state it stores raw blocks only, leaving accounts and game records empty,
// so full nodes always pass both.
type Syncer struct {
	node      *Node
	bc        *core.Blockchain
	validator BlockValidator
	exec      BlockExecutor
	state     core.State
}

// NewSyncer wires sync handlers into node's dispatch table.
func NewSyncer(node *Node, bc *core.Blockchain, validator BlockValidator, exec BlockExecutor, state core.State) *Syncer {
	s := &Syncer{node: node, bc: bc, validator: validator, exec: exec, state: state}
	node.Handle(KindHello, s.onHello)
	node.Handle(KindBlock, s.onBlock)
	node.Handle(KindGetBlocks, s.onGetBlocks)
	node.Handle(KindBlocks, s.onBlocks)
	return s
}

// onBlock handles a single gossiped block. A gap between our tip and the
// block's height means we missed something; fall back to a batch request.
func (s *Syncer) onBlock(peer *Peer, env Envelope) {
	var b core.Block
	if err := json.Unmarshal(env.Body, &b); err != nil {
		return
	}
	if b.Header.Height > s.bc.Height()+1 {
		s.SyncWithPeer(peer)
		return
	}
	if b.Header.Height <= s.bc.Height() {
		return // already have it
	}
	if err := s.apply(&b); err != nil {
		log.Printf("[sync] gossiped block %d from %s: %v", b.Header.Height, peer.ID, err)
	}
}

// onHello checks the peer's chain identity, then starts catching up from it.
// An empty ChainID is tolerated for older peers that never announced one.
func (s *Syncer) onHello(peer *Peer, env Envelope) {
	var hello Hello
	if err := json.Unmarshal(env.Body, &hello); err != nil {
		log.Printf("[sync] malformed hello from %s: %v", peer.ID, err)
		s.node.RemovePeer(peer.ID)
		return
	}
	if hello.ChainID != "" && hello.ChainID != s.node.ChainID() {
		log.Printf("[sync] %s is on chain %q, ours is %q; disconnecting", peer.ID, hello.ChainID, s.node.ChainID())
		s.node.RemovePeer(peer.ID)
		return
	}
	s.SyncWithPeer(peer)
}

// SyncWithPeer requests everything above the local tip from peer.
func (s *Syncer) SyncWithPeer(peer *Peer) {
	if err := s.requestFrom(peer, s.bc.Height()+1); err != nil {
		log.Printf("[sync] request to %s: %v", peer.ID, err)
	}
}

func (s *Syncer) requestFrom(peer *Peer, fromHeight int64) error {
	return peer.Send(KindGetBlocks, GetBlocksRequest{FromHeight: fromHeight, Limit: syncBatch})
}

func (s *Syncer) onGetBlocks(peer *Peer, env Envelope) {
	var req GetBlocksRequest
	if err := json.Unmarshal(env.Body, &req); err != nil {
		return
	}
	if req.Limit <= 0 || req.Limit > syncBatchMax {
		req.Limit = syncBatch
	}

	blocks := make([]*core.Block, 0, req.Limit)
	for h := req.FromHeight; h < req.FromHeight+int64(req.Limit); h++ {
		b, err := s.bc.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	if err := peer.Send(KindBlocks, BlocksResponse{Blocks: blocks}); err != nil {
		log.Printf("[sync] send blocks to %s: %v", peer.ID, err)
	}
}

func (s *Syncer) onBlocks(peer *Peer, env Envelope) {
	var resp BlocksResponse
	if err := json.Unmarshal(env.Body, &resp); err != nil {
		return
	}
	for _, b := range resp.Blocks {
		if err := s.apply(b); err != nil {
			log.Printf("[sync] block %d from %s: %v", b.Header.Height, peer.ID, err)
			return
		}
	}

	// A full batch hints the peer has more; keep pulling.
	if len(resp.Blocks) >= syncBatch {
		if err := s.requestFrom(peer, s.bc.Height()+1); err != nil {
			log.Printf("[sync] follow-up request to %s: %v", peer.ID, err)
		}
	}
}

// apply validates, executes, stores and commits one synced block. Any
// failure after execution reverts state to the pre-block snapshot; a failed
// revert is unrecoverable and halts the node rather than running on
// corrupted state.
func (s *Syncer) apply(b *core.Block) error {
	if s.validator != nil {
		if err := s.validator.ValidateBlock(b); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
	}

	replay := s.exec != nil && s.state != nil
	var snap int
	if replay {
		var err error
		snap, err = s.state.Snapshot()
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if err := s.exec.ExecuteBlock(b); err != nil {
			s.mustRevert(b, snap, err)
			return fmt.Errorf("execute: %w", err)
		}
		if root := s.state.ComputeRoot(); b.Header.StateRoot != "" && root != b.Header.StateRoot {
			err := fmt.Errorf("state root mismatch: computed %s want %s", root, b.Header.StateRoot)
			s.mustRevert(b, snap, err)
			return err
		}
	}

	if err := s.bc.AddBlock(b); err != nil {
		if replay {
			s.mustRevert(b, snap, err)
		}
		return fmt.Errorf("store: %w", err)
	}

	if replay {
		if err := s.state.Commit(); err != nil {
			log.Fatalf("[sync] FATAL: block %d stored but commit failed: %v", b.Header.Height, err)
		}
	}
	return nil
}

func (s *Syncer) mustRevert(b *core.Block, snap int, cause error) {
	if err := s.state.RevertToSnapshot(snap); err != nil {
		log.Fatalf("[sync] FATAL: block %d revert failed: %v (cause: %v)", b.Header.Height, err, cause)
	}
}
