package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karuha/arenachain/events"
	"github.com/karuha/arenachain/indexer"
	"github.com/karuha/arenachain/internal/testutil"
)

func TestCardOwnerIndex(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type: events.EventCardMinted,
		Data: map[string]any{"card_id": uint64(1), "owner": "alice"},
	})
	emitter.Emit(events.Event{
		Type: events.EventCardMinted,
		Data: map[string]any{"card_id": uint64(2), "owner": "alice"},
	})

	ids, err := idx.GetCardsByOwner("alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, ids)

	// Transfer moves the card between owner lists.
	emitter.Emit(events.Event{
		Type: events.EventCardTransfer,
		Data: map[string]any{"card_id": uint64(1), "from": "alice", "to": "bob"},
	})
	ids, _ = idx.GetCardsByOwner("alice")
	assert.ElementsMatch(t, []uint64{2}, ids)
	ids, _ = idx.GetCardsByOwner("bob")
	assert.ElementsMatch(t, []uint64{1}, ids)

	// Burn removes it entirely.
	emitter.Emit(events.Event{
		Type: events.EventCardBurned,
		Data: map[string]any{"card_id": uint64(1), "owner": "bob"},
	})
	ids, _ = idx.GetCardsByOwner("bob")
	assert.Empty(t, ids)

	// Market purchase moves ownership like a transfer.
	emitter.Emit(events.Event{
		Type: events.EventMarketBuy,
		Data: map[string]any{"card_id": uint64(2), "seller": "alice", "buyer": "bob"},
	})
	ids, _ = idx.GetCardsByOwner("bob")
	assert.ElementsMatch(t, []uint64{2}, ids)
}

func TestBattleIndex(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type: events.EventBattleRegistered,
		Data: map[string]any{"battle_id": uint64(1), "player1": "alice"},
	})
	emitter.Emit(events.Event{
		Type: events.EventBattleResolved,
		Data: map[string]any{"battle_id": uint64(1), "winner": "alice", "loser": "bob"},
	})

	ids, err := idx.GetBattlesByPlayer("alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids, "registration and resolution must not double-index")

	ids, err = idx.GetBattlesByPlayer("bob")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids, "opponent is indexed at resolution")

	ids, err = idx.GetBattlesByPlayer("carol")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// Events that were serialised to JSON carry numbers as float64; the indexer
// must accept both.
func TestIndexerFloat64IDs(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type: events.EventCardMinted,
		Data: map[string]any{"card_id": float64(3), "owner": "alice"},
	})
	ids, err := idx.GetCardsByOwner("alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, ids)
}
