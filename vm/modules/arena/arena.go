// Package arena is the battle ledger: player registration, battle creation,
// and signature-gated battle resolution with character progression. Outcomes
// are computed off-chain; the chain only commits outcomes attested by the
// configured battle authority.
package arena

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/crypto"
	"github.com/karuha/arenachain/events"
	"github.com/karuha/arenachain/vm"
)

func init() {
	vm.Register(core.TxRegisterPlayer, handleRegisterPlayer)
	vm.Register(core.TxRegisterBattle, handleRegisterBattle)
	vm.Register(core.TxResolveBattle, handleResolveBattle)
	vm.Register(core.TxTransferAuthority, handleTransferAuthority)
}

func handleRegisterPlayer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RegisterPlayerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode register_player payload: %w", err)
	}
	if p.Name == "" {
		return errors.New("player name required")
	}

	player, err := ctx.State.GetPlayer(ctx.Tx.From)
	switch {
	case err == nil && player.Name != "":
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, player.Name)
	case errors.Is(err, core.ErrNotFound):
		player = &core.Player{Address: ctx.Tx.From}
	case err != nil:
		return fmt.Errorf("player %s: %w", ctx.Tx.From, err)
	}
	// A record may already exist with an empty name if the address earned
	// battle credit before registering; registration only claims the name.
	player.Name = p.Name
	player.RegisteredAt = ctx.Block.Header.Timestamp
	if err := ctx.State.SetPlayer(player); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventPlayerRegistered,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"name": p.Name, "address": ctx.Tx.From},
		})
	}
	return nil
}

// handleRegisterBattle opens a battle with the sender as player one. The
// sender is intentionally not required to be a registered player; the ledger
// has always accepted battles from unregistered addresses and clients rely on
// registration and battle creation being orderable either way.
func handleRegisterBattle(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RegisterBattlePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode register_battle payload: %w", err)
	}

	last, err := ctx.State.GetCounter(core.CounterNextBattleID)
	if err != nil {
		return fmt.Errorf("battle counter: %w", err)
	}
	id := last + 1
	if err := ctx.State.SetCounter(core.CounterNextBattleID, id); err != nil {
		return err
	}
	total, err := ctx.State.GetCounter(core.CounterTotalBattles)
	if err != nil {
		return fmt.Errorf("total battles counter: %w", err)
	}
	if err := ctx.State.SetCounter(core.CounterTotalBattles, total+1); err != nil {
		return err
	}

	battle := &core.Battle{
		ID:        id,
		Name:      p.Name,
		Player1:   ctx.Tx.From,
		StartTime: ctx.Block.Header.Timestamp,
	}
	if err := ctx.State.SetBattle(battle); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventBattleRegistered,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"battle_id": id, "name": p.Name, "player1": ctx.Tx.From},
		})
	}
	return nil
}

func handleResolveBattle(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ResolveBattlePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode resolve_battle payload: %w", err)
	}

	battle, err := ctx.State.GetBattle(p.BattleID)
	if err != nil {
		return fmt.Errorf("battle %d: %w", p.BattleID, err)
	}
	if battle.Resolved {
		return fmt.Errorf("battle %d: %w", p.BattleID, ErrBattleResolved)
	}
	if battle.Player2 != "" {
		return fmt.Errorf("battle %d: %w", p.BattleID, ErrOpponentAlreadySet)
	}
	if p.Player2 == "" {
		return ErrInvalidOpponent
	}
	if _, err := crypto.PubKeyFromHex(p.Player2); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOpponent, err)
	}

	// Ownership oracle: both sides must hold their cards at resolution time.
	// Computer opponents field no card of their own.
	if err := requireCardOwner(ctx.State, p.Player1TokenID, battle.Player1); err != nil {
		return err
	}
	if !p.IsComputer {
		if err := requireCardOwner(ctx.State, p.Player2TokenID, p.Player2); err != nil {
			return err
		}
	}

	if p.Winner != battle.Player1 && p.Winner != p.Player2 {
		return fmt.Errorf("%w: %s", ErrWinnerNotParticipant, p.Winner)
	}

	authority, err := ctx.State.GetAuthority()
	if err != nil {
		return fmt.Errorf("battle authority not configured: %w", err)
	}
	digest := core.OutcomeDigest(ctx.ChainID, &p)
	if err := crypto.VerifyHex(authority, digest, p.Attestation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttestation, err)
	}

	battle.Player2 = p.Player2
	battle.Player1TokenID = p.Player1TokenID
	battle.Player2TokenID = p.Player2TokenID
	battle.Resolved = true
	battle.Winner = p.Winner
	battle.ResolvedAt = ctx.Block.Header.Timestamp
	if err := ctx.State.SetBattle(battle); err != nil {
		return err
	}

	loser := battle.Player1
	winnerToken, loserToken := p.Player2TokenID, p.Player1TokenID
	if p.Winner == battle.Player1 {
		loser = p.Player2
		winnerToken, loserToken = p.Player1TokenID, p.Player2TokenID
	}

	if err := creditOutcome(ctx.State, p.Winner, winnerToken, p.WinnerExp, true); err != nil {
		return err
	}
	if err := creditOutcome(ctx.State, loser, loserToken, p.LoserExp, false); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventBattleResolved,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"battle_id":  p.BattleID,
				"winner":     p.Winner,
				"loser":      loser,
				"winner_exp": p.WinnerExp,
				"loser_exp":  p.LoserExp,
			},
		})
	}
	return nil
}

func handleTransferAuthority(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferAuthorityPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer_authority payload: %w", err)
	}

	authority, err := ctx.State.GetAuthority()
	if err != nil {
		return fmt.Errorf("battle authority not configured: %w", err)
	}
	if ctx.Tx.From != authority {
		return ErrNotAuthority
	}
	if _, err := crypto.PubKeyFromHex(p.To); err != nil {
		return fmt.Errorf("invalid new authority: %w", err)
	}
	if err := ctx.State.SetAuthority(p.To); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventAuthorityChanged,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"from": authority, "to": p.To},
		})
	}
	return nil
}

// requireCardOwner checks that the card exists and is held by owner.
// A missing card fails the same way a transferred one does.
func requireCardOwner(state core.State, tokenID uint64, owner string) error {
	card, err := state.GetCard(tokenID)
	if err != nil {
		return fmt.Errorf("%w: card %d: %v", ErrOwnershipMismatch, tokenID, err)
	}
	if card.Owner != owner {
		return fmt.Errorf("%w: card %d held by %s", ErrOwnershipMismatch, tokenID, card.Owner)
	}
	return nil
}

// creditOutcome applies one side of a resolution: character stats (lazily
// created, class left at its zero value) and the address's aggregate player
// record (lazily created with an empty name, so isPlayer stays false until a
// real registration).
func creditOutcome(state core.State, address string, tokenID, exp uint64, won bool) error {
	cs, err := state.GetCharacterStats(address, tokenID)
	if errors.Is(err, core.ErrNotFound) {
		cs = &core.CharacterStats{Player: address, TokenID: tokenID}
	} else if err != nil {
		return fmt.Errorf("stats %s/%d: %w", address, tokenID, err)
	}
	cs.Exp += exp
	if won {
		cs.Wins++
	} else {
		cs.Losses++
	}
	ApplyLeveling(cs)
	if err := state.SetCharacterStats(cs); err != nil {
		return err
	}

	player, err := state.GetPlayer(address)
	if errors.Is(err, core.ErrNotFound) {
		player = &core.Player{Address: address}
	} else if err != nil {
		return fmt.Errorf("player %s: %w", address, err)
	}
	player.Experience += exp
	if won {
		player.TotalWins++
	} else {
		player.TotalLosses++
	}
	return state.SetPlayer(player)
}
