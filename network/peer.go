// Package network is the gossip layer between nodes. Peers exchange JSON
// envelopes over TCP (optionally TLS), each frame prefixed with a 4-byte
// big-endian length. A hello handshake announces node and chain identity;
// peers on a foreign chain are dropped.
package network

import (
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Kind discriminates envelope payloads.
type Kind string

const (
	KindHello     Kind = "hello"
	KindTx        Kind = "tx"
	KindBlock     Kind = "block"
	KindGetBlocks Kind = "get_blocks"
	KindBlocks    Kind = "blocks"
)

// Envelope is the single wire type; Body is decoded according to Kind.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// Hello opens every connection. Height lets the receiver decide whether it
// is behind and should sync.
type Hello struct {
	NodeID  string `json:"node_id"`
	ChainID string `json:"chain_id"`
	Height  int64  `json:"height"`
}

// maxFrame bounds a single envelope; anything larger is treated as a
// protocol violation rather than an allocation request.
const maxFrame = 32 << 20

var errPeerClosed = errors.New("peer connection closed")

// Peer is one live connection, inbound or outbound.
type Peer struct {
	ID string

	conn net.Conn

	wmu    sync.Mutex // serialises frame writes
	closed bool
}

func newPeer(id string, conn net.Conn) *Peer {
	return &Peer{ID: id, conn: conn}
}

// dial opens an outbound connection, with TLS when tlsCfg is set.
func dial(id, addr string, tlsCfg *tls.Config) (*Peer, error) {
	var (
		conn net.Conn
		err  error
	)
	if tlsCfg != nil {
		conn, err = tls.Dial("tcp", addr, tlsCfg)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newPeer(id, conn), nil
}

// Send frames and writes one envelope. Safe for concurrent use.
func (p *Peer) Send(kind Kind, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Kind: kind, Body: raw})
	if err != nil {
		return err
	}

	p.wmu.Lock()
	defer p.wmu.Unlock()
	if p.closed {
		return errPeerClosed
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := p.conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err = p.conn.Write(frame)
	return err
}

// Receive blocks until the next envelope arrives.
func (p *Peer) Receive() (Envelope, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(p.conn, hdr[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrame {
		return Envelope{}, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(p.conn, frame); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Close tears the connection down. Idempotent.
func (p *Peer) Close() {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.conn.Close()
}
