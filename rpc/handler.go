package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/indexer"
	"github.com/karuha/arenachain/vm/modules/arena"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	state   core.State
	indexer *indexer.Indexer
	chainID string // expected chain_id; used to reject cross-chain replay transactions
}

// NewHandler creates an RPC Handler.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, state core.State, idx *indexer.Indexer, chainID string) *Handler {
	return &Handler{bc: bc, mempool: mempool, state: state, indexer: idx, chainID: chainID}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.bc.Height())

	case "getBlock":
		return h.getBlock(req)

	case "getBalance":
		return h.getBalance(req)

	case "isPlayer":
		return h.isPlayer(req)

	case "getPlayer":
		return h.getPlayer(req)

	case "getBattle":
		return h.getBattle(req)

	case "getTotalBattles":
		return h.getTotalBattles(req)

	case "getCharacterStats":
		return h.getCharacterStats(req)

	case "getRequiredExp":
		return h.getRequiredExp(req)

	case "getBaseHealth", "getBaseMana", "getBaseAttack", "getBaseDefense":
		return h.getBaseStat(req)

	case "getAuthority":
		return h.getAuthority(req)

	case "getCard":
		return h.getCard(req)

	case "getCardsByOwner":
		return h.getCardsByOwner(req)

	case "getBattlesByPlayer":
		return h.getBattlesByPlayer(req)

	case "getListing":
		return h.getListing(req)

	case "sendTx":
		return h.sendTx(req)

	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Size())

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if block == nil {
		return errResponse(req.ID, CodeInternalError, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	acc, err := h.state.GetAccount(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "balance": acc.Balance, "nonce": acc.Nonce})
}

// isPlayer reports whether the address has claimed a name. Addresses that
// only accumulated battle credit (empty name) are not players yet.
func (h *Handler) isPlayer(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	player, err := h.state.GetPlayer(params.Address)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, false)
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, player.Name != "")
}

func (h *Handler) getPlayer(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	player, err := h.state.GetPlayer(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, player)
}

func (h *Handler) getBattle(req Request) Response {
	var params struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == 0 {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	battle, err := h.state.GetBattle(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, battle)
}

func (h *Handler) getTotalBattles(req Request) Response {
	total, err := h.state.GetCounter(core.CounterTotalBattles)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, total)
}

// getCharacterStats returns progression stats for a (player, card) pair. The
// card must currently be held by the player; stats that were never written
// come back zero-valued.
func (h *Handler) getCharacterStats(req Request) Response {
	var params struct {
		Player  string `json:"player"`
		TokenID uint64 `json:"token_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Player == "" {
		return errResponse(req.ID, CodeInvalidParams, "player is required")
	}

	card, err := h.state.GetCard(params.TokenID)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, fmt.Sprintf("card %d: %v", params.TokenID, err))
	}
	if card.Owner != params.Player {
		return errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("card %d is not held by %s", params.TokenID, params.Player))
	}

	cs, err := h.state.GetCharacterStats(params.Player, params.TokenID)
	if errors.Is(err, core.ErrNotFound) {
		cs = &core.CharacterStats{Player: params.Player, TokenID: params.TokenID}
	} else if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, cs)
}

func (h *Handler) getRequiredExp(req Request) Response {
	var params struct {
		Level uint64 `json:"level"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	return okResponse(req.ID, arena.RequiredExp(params.Level))
}

// getBaseStat serves all four base-stat lookups. getBaseHealth errors on an
// unknown class; the other three fall back to their defaults, mirroring the
// ledger's lookup behaviour exactly.
func (h *Handler) getBaseStat(req Request) Response {
	var params struct {
		Class core.CharacterClass `json:"class"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	switch req.Method {
	case "getBaseHealth":
		v, err := arena.BaseHealth(params.Class)
		if err != nil {
			return errResponse(req.ID, CodeInvalidParams, err.Error())
		}
		return okResponse(req.ID, v)
	case "getBaseMana":
		return okResponse(req.ID, arena.BaseMana(params.Class))
	case "getBaseAttack":
		return okResponse(req.ID, arena.BaseAttack(params.Class))
	default:
		return okResponse(req.ID, arena.BaseDefense(params.Class))
	}
}

func (h *Handler) getAuthority(req Request) Response {
	authority, err := h.state.GetAuthority()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, authority)
}

func (h *Handler) getCard(req Request) Response {
	var params struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == 0 {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	card, err := h.state.GetCard(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, card)
}

func (h *Handler) getCardsByOwner(req Request) Response {
	var params struct {
		Owner string `json:"owner"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Owner == "" {
		return errResponse(req.ID, CodeInvalidParams, "owner is required")
	}
	ids, err := h.indexer.GetCardsByOwner(params.Owner)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getBattlesByPlayer(req Request) Response {
	var params struct {
		Player string `json:"player"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Player == "" {
		return errResponse(req.ID, CodeInvalidParams, "player is required")
	}
	ids, err := h.indexer.GetBattlesByPlayer(params.Player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getListing(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	listing, err := h.state.GetListing(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, listing)
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Reject transactions destined for a different network to prevent
	// cross-chain replay attacks.
	if tx.ChainID != h.chainID {
		return errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID))
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if err := h.mempool.Add(&tx); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}
