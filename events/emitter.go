// Package events is the chain's pub/sub log: vm modules and consensus emit
// typed events after state changes, and the indexer plus the WebSocket
// feed subscribe to them.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit      EventType = "block_commit"
	EventTxExecuted       EventType = "tx_executed"
	EventTokenTransfer    EventType = "token_transfer"
	EventPlayerRegistered EventType = "player_registered"
	EventBattleRegistered EventType = "battle_registered"
	EventBattleResolved   EventType = "battle_resolved"
	EventAuthorityChanged EventType = "authority_transferred"
	EventCardMinted       EventType = "card_minted"
	EventCardTransfer     EventType = "card_transferred"
	EventCardBurned       EventType = "card_burned"
	EventMarketList       EventType = "market_list"
	EventMarketBuy        EventType = "market_buy"
)

// Event is one entry of the externally observable log. ID and Time
// identify the entry itself; everything semantic lives in Data.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Time        int64          `json:"time"`
	Data        map[string]any `json:"data"`
}

// Handler receives matching events.
type Handler func(Event)

// Emitter is a synchronous broker. Subscriptions taken out before Emit
// are guaranteed delivery; there is no replay for late subscribers.
type Emitter struct {
	mu    sync.RWMutex
	byTyp map[EventType][]Handler
	all   []Handler
}

// NewEmitter returns a broker with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{byTyp: make(map[EventType][]Handler)}
}

// Subscribe delivers events of type typ to h.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	e.byTyp[typ] = append(e.byTyp[typ], h)
	e.mu.Unlock()
}

// SubscribeAll delivers every event to h regardless of type; the RPC
// event stream uses this.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	e.all = append(e.all, h)
	e.mu.Unlock()
}

// Emit stamps ev with an ID and emission time and delivers it
// synchronously. Handlers run under panic recovery: a broken subscriber
// must not take down block production.
func (e *Emitter) Emit(ev Event) {
	ev.ID = uuid.NewString()
	ev.Time = time.Now().UnixNano()

	e.mu.RLock()
	targets := make([]Handler, 0, len(e.byTyp[ev.Type])+len(e.all))
	targets = append(targets, e.byTyp[ev.Type]...)
	targets = append(targets, e.all...)
	e.mu.RUnlock()

	for _, h := range targets {
		deliver(h, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
		}
	}()
	h(ev)
}
