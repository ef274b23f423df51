package network

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/karuha/arenachain/core"
)

// Handler reacts to one envelope from one peer.
type Handler func(peer *Peer, env Envelope)

// DefaultMaxPeers caps simultaneous connections unless overridden.
const DefaultMaxPeers = 50

// Node owns the listener and the live peer table, and dispatches inbound
// envelopes to registered handlers. Transactions arriving over gossip are
// funnelled into the local mempool after a chain-ID check.
type Node struct {
	nodeID    string
	chainID   string
	bindAddr  string
	mempool   *core.Mempool
	tlsConfig *tls.Config // nil means plain TCP
	maxPeers  int

	mu       sync.RWMutex
	peers    map[string]*Peer
	dispatch map[Kind]Handler

	ln   net.Listener
	quit chan struct{}
}

// NewNode prepares a node that will accept peers on bindAddr once Start is
// called. chainID goes into every hello so foreign-network peers can be
// turned away on both ends.
func NewNode(nodeID, chainID, bindAddr string, mempool *core.Mempool, tlsCfg *tls.Config) *Node {
	n := &Node{
		nodeID:    nodeID,
		chainID:   chainID,
		bindAddr:  bindAddr,
		mempool:   mempool,
		tlsConfig: tlsCfg,
		maxPeers:  DefaultMaxPeers,
		peers:     make(map[string]*Peer),
		dispatch:  make(map[Kind]Handler),
		quit:      make(chan struct{}),
	}
	n.Handle(KindTx, n.acceptGossipTx)
	return n
}

// ChainID returns the network identifier announced to peers.
func (n *Node) ChainID() string { return n.chainID }

// Handle installs h for envelopes of the given kind, replacing any previous
// handler.
func (n *Node) Handle(kind Kind, h Handler) {
	n.mu.Lock()
	n.dispatch[kind] = h
	n.mu.Unlock()
}

// Start opens the listener and begins accepting peers.
func (n *Node) Start() error {
	var (
		ln  net.Listener
		err error
	)
	if n.tlsConfig != nil {
		ln, err = tls.Listen("tcp", n.bindAddr, n.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", n.bindAddr)
	}
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.bindAddr, err)
	}
	n.ln = ln
	go n.acceptLoop()
	return nil
}

// Stop closes the listener and every peer connection.
func (n *Node) Stop() {
	close(n.quit)
	if n.ln != nil {
		n.ln.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		p.Close()
	}
}

// AddPeer dials a seed peer, starts serving it, and opens the handshake.
func (n *Node) AddPeer(id, addr string) error {
	peer, err := dial(id, addr, n.tlsConfig)
	if err != nil {
		return err
	}
	n.track(peer)
	go n.serve(peer)

	if err := peer.Send(KindHello, Hello{NodeID: n.nodeID, ChainID: n.chainID}); err != nil {
		log.Printf("[network] hello to %s: %v", id, err)
	}
	return nil
}

// RemovePeer disconnects and forgets a peer. Used when a handshake reveals
// a chain mismatch.
func (n *Node) RemovePeer(id string) {
	n.mu.Lock()
	peer := n.peers[id]
	delete(n.peers, id)
	n.mu.Unlock()
	if peer != nil {
		peer.Close()
	}
}

// Peer looks up a connected peer by id.
func (n *Node) Peer(id string) *Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peers[id]
}

// Broadcast fans body out to every connected peer. Per-peer send failures
// are logged, not returned; a flaky peer must not block gossip.
func (n *Node) Broadcast(kind Kind, body any) {
	n.mu.RLock()
	targets := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		targets = append(targets, p)
	}
	n.mu.RUnlock()

	for _, p := range targets {
		if err := p.Send(kind, body); err != nil {
			log.Printf("[network] broadcast to %s: %v", p.ID, err)
		}
	}
}

// BroadcastTx gossips a transaction.
func (n *Node) BroadcastTx(tx *core.Transaction) { n.Broadcast(KindTx, tx) }

// BroadcastBlock gossips a freshly produced block.
func (n *Node) BroadcastBlock(block *core.Block) { n.Broadcast(KindBlock, block) }

func (n *Node) track(peer *Peer) {
	n.mu.Lock()
	n.peers[peer.ID] = peer
	n.mu.Unlock()
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.ln.Accept()
		if err != nil {
			select {
			case <-n.quit:
				return
			default:
			}
			log.Printf("[network] accept: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		n.mu.RLock()
		full := len(n.peers) >= n.maxPeers
		n.mu.RUnlock()
		if full {
			log.Printf("[network] at peer limit %d, turning away %s", n.maxPeers, conn.RemoteAddr())
			conn.Close()
			continue
		}

		// Inbound peers are keyed by remote address until their hello
		// names them.
		peer := newPeer(conn.RemoteAddr().String(), conn)
		n.track(peer)
		go n.serve(peer)
	}
}

// serve reads envelopes from peer until the connection dies, then drops it
// from the table.
func (n *Node) serve(peer *Peer) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[network] handler panic from %s: %v", peer.ID, r)
		}
		n.RemovePeer(peer.ID)
	}()

	for {
		env, err := peer.Receive()
		if err != nil {
			return
		}
		n.mu.RLock()
		h := n.dispatch[env.Kind]
		n.mu.RUnlock()
		if h != nil {
			h(peer, env)
		}
	}
}

func (n *Node) acceptGossipTx(_ *Peer, env Envelope) {
	var tx core.Transaction
	if err := json.Unmarshal(env.Body, &tx); err != nil {
		log.Printf("[network] bad tx envelope: %v", err)
		return
	}
	if tx.ChainID != n.chainID {
		log.Printf("[network] dropping tx %s for chain %q (ours is %q)", tx.ID, tx.ChainID, n.chainID)
		return
	}
	if err := n.mempool.Add(&tx); err != nil {
		log.Printf("[network] mempool rejected gossip tx: %v", err)
	}
}
