package rpc_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/events"
	"github.com/karuha/arenachain/indexer"
	"github.com/karuha/arenachain/internal/testutil"
	"github.com/karuha/arenachain/rpc"
	"github.com/karuha/arenachain/storage"
	"github.com/karuha/arenachain/wallet"
)

const chainID = "rpc-test"

func newHandler(t *testing.T) (*rpc.Handler, *storage.StateDB) {
	t.Helper()
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	require.NoError(t, bc.Init())
	idx := indexer.New(db, events.NewEmitter())
	return rpc.NewHandler(bc, core.NewMempool(), state, idx, chainID), state
}

func call(t *testing.T, h *rpc.Handler, method string, params any) rpc.Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return h.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func TestDispatchUnknownMethod(t *testing.T) {
	h, _ := newHandler(t)
	resp := call(t, h, "noSuchMethod", map[string]any{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestIsPlayer(t *testing.T) {
	h, state := newHandler(t)

	resp := call(t, h, "isPlayer", map[string]any{"address": "aabb"})
	require.Nil(t, resp.Error)
	assert.Equal(t, false, resp.Result)

	// A record with battle credit but no name is not a player yet.
	require.NoError(t, state.SetPlayer(&core.Player{Address: "aabb", TotalWins: 2}))
	resp = call(t, h, "isPlayer", map[string]any{"address": "aabb"})
	assert.Equal(t, false, resp.Result)

	require.NoError(t, state.SetPlayer(&core.Player{Address: "aabb", Name: "Alice"}))
	resp = call(t, h, "isPlayer", map[string]any{"address": "aabb"})
	assert.Equal(t, true, resp.Result)
}

func TestGetCharacterStatsOwnershipGate(t *testing.T) {
	h, state := newHandler(t)
	require.NoError(t, state.SetCard(&core.Card{ID: 5, Owner: "alice", Class: core.ClassMage}))

	// Non-owner queries are refused.
	resp := call(t, h, "getCharacterStats", map[string]any{"player": "bob", "token_id": 5})
	require.NotNil(t, resp.Error)

	// Owner with no stats record gets zero-valued stats, not an error.
	resp = call(t, h, "getCharacterStats", map[string]any{"player": "alice", "token_id": 5})
	require.Nil(t, resp.Error)
	cs, ok := resp.Result.(*core.CharacterStats)
	require.True(t, ok)
	assert.Equal(t, "alice", cs.Player)
	assert.Equal(t, uint64(0), cs.Exp)

	require.NoError(t, state.SetCharacterStats(&core.CharacterStats{Player: "alice", TokenID: 5, Exp: 150, Level: 1}))
	resp = call(t, h, "getCharacterStats", map[string]any{"player": "alice", "token_id": 5})
	require.Nil(t, resp.Error)
	cs = resp.Result.(*core.CharacterStats)
	assert.Equal(t, uint64(150), cs.Exp)
	assert.Equal(t, uint64(1), cs.Level)
}

func TestGetBaseStats(t *testing.T) {
	h, _ := newHandler(t)

	resp := call(t, h, "getBaseHealth", map[string]any{"class": core.ClassWarrior})
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(100), resp.Result)

	// Unknown class: health errors, the other stats fall back.
	resp = call(t, h, "getBaseHealth", map[string]any{"class": 99})
	assert.NotNil(t, resp.Error)

	resp = call(t, h, "getBaseMana", map[string]any{"class": 99})
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(70), resp.Result)
}

func TestGetRequiredExp(t *testing.T) {
	h, _ := newHandler(t)
	resp := call(t, h, "getRequiredExp", map[string]any{"level": 3})
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(300), resp.Result)
}

func TestGetBattleAndTotals(t *testing.T) {
	h, state := newHandler(t)
	require.NoError(t, state.SetBattle(&core.Battle{ID: 1, Name: "first", Player1: "alice"}))
	require.NoError(t, state.SetCounter(core.CounterTotalBattles, 1))

	resp := call(t, h, "getBattle", map[string]any{"id": 1})
	require.Nil(t, resp.Error)
	b := resp.Result.(*core.Battle)
	assert.Equal(t, "first", b.Name)

	resp = call(t, h, "getTotalBattles", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(1), resp.Result)
}

func TestSendTxChainIDMismatch(t *testing.T) {
	h, _ := newHandler(t)
	w, err := wallet.Generate()
	require.NoError(t, err)

	tx, err := w.Transfer("wrong-chain", "aabb", 10, 0, 0)
	require.NoError(t, err)
	resp := call(t, h, "sendTx", tx)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "chain ID mismatch")

	tx, err = w.Transfer(chainID, "aabb", 10, 0, 0)
	require.NoError(t, err)
	resp = call(t, h, "sendTx", tx)
	assert.Nil(t, resp.Error)
}

func TestGetAuthority(t *testing.T) {
	h, state := newHandler(t)
	require.NoError(t, state.SetAuthority("ccdd"))
	resp := call(t, h, "getAuthority", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "ccdd", resp.Result)
}
