// Package indexer maintains secondary indexes over emitted chain events so
// clients can query cards by owner and battles by player without scanning
// full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/events"
	"github.com/karuha/arenachain/storage"
)

const (
	prefixOwnerCards   = "idx:owner:card:"
	prefixPlayerBattle = "idx:player:battle:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventCardMinted, idx.onCardMinted)
	emitter.Subscribe(events.EventCardTransfer, idx.onCardTransferred)
	emitter.Subscribe(events.EventCardBurned, idx.onCardBurned)
	emitter.Subscribe(events.EventMarketBuy, idx.onMarketBuy)
	emitter.Subscribe(events.EventBattleRegistered, idx.onBattleRegistered)
	emitter.Subscribe(events.EventBattleResolved, idx.onBattleResolved)
	return idx
}

// GetCardsByOwner returns all card IDs owned by the given pubkey.
func (idx *Indexer) GetCardsByOwner(owner string) ([]uint64, error) {
	return idx.getIDList(prefixOwnerCards + owner)
}

// GetBattlesByPlayer returns all battle IDs an address participated in,
// creator side at registration and opponent side at resolution.
func (idx *Indexer) GetBattlesByPlayer(player string) ([]uint64, error) {
	return idx.getIDList(prefixPlayerBattle + player)
}

// ---- event handlers ----

// eventID extracts a numeric ID from event data. In-process events carry
// uint64 values; events replayed from JSON carry float64.
func eventID(data map[string]any, key string) (uint64, bool) {
	switch v := data[key].(type) {
	case uint64:
		return v, true
	case float64:
		return uint64(v), true
	default:
		return 0, false
	}
}

func (idx *Indexer) onCardMinted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	cardID, ok := eventID(ev.Data, "card_id")
	if owner == "" || !ok {
		return
	}
	_ = idx.addToList(prefixOwnerCards+owner, cardID)
}

func (idx *Indexer) onCardTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	cardID, ok := eventID(ev.Data, "card_id")
	if !ok || from == "" || to == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerCards+from, cardID); err != nil {
		return
	}
	_ = idx.addToList(prefixOwnerCards+to, cardID)
}

func (idx *Indexer) onCardBurned(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	cardID, ok := eventID(ev.Data, "card_id")
	if owner == "" || !ok {
		return
	}
	_ = idx.removeFromList(prefixOwnerCards+owner, cardID)
}

func (idx *Indexer) onMarketBuy(ev events.Event) {
	seller, _ := ev.Data["seller"].(string)
	buyer, _ := ev.Data["buyer"].(string)
	cardID, ok := eventID(ev.Data, "card_id")
	if !ok || seller == "" || buyer == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerCards+seller, cardID); err != nil {
		return
	}
	_ = idx.addToList(prefixOwnerCards+buyer, cardID)
}

func (idx *Indexer) onBattleRegistered(ev events.Event) {
	player1, _ := ev.Data["player1"].(string)
	battleID, ok := eventID(ev.Data, "battle_id")
	if player1 == "" || !ok {
		return
	}
	_ = idx.addToList(prefixPlayerBattle+player1, battleID)
}

func (idx *Indexer) onBattleResolved(ev events.Event) {
	battleID, ok := eventID(ev.Data, "battle_id")
	if !ok {
		return
	}
	winner, _ := ev.Data["winner"].(string)
	loser, _ := ev.Data["loser"].(string)
	// Player one is already indexed from registration; index whichever
	// participant is new. addToList dedupes.
	for _, p := range []string{winner, loser} {
		if p != "" {
			_ = idx.addToList(prefixPlayerBattle+p, battleID)
		}
	}
}

// ---- list helpers ----

func (idx *Indexer) getIDList(key string) ([]uint64, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	ids := make([]uint64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("indexer entry %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key string, id uint64) error {
	ids, _ := idx.getIDList(key)
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return idx.putIDList(key, ids)
}

func (idx *Indexer) removeFromList(key string, id uint64) error {
	ids, _ := idx.getIDList(key)
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	return idx.putIDList(key, filtered)
}

func (idx *Indexer) putIDList(key string, ids []uint64) error {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = strconv.FormatUint(id, 10)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
