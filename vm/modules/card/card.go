// Package card implements the NFT character cards battles are fought with.
// Card ownership is the oracle the arena module consults before committing a
// battle outcome.
package card

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
	vm.Register(core.TxMintCard, handleMintCard)
	vm.Register(core.TxTransferCard, handleTransferCard)
	vm.Register(core.TxBurnCard, handleBurnCard)
}

func handleMintCard(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MintCardPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode mint_card payload: %w", err)
	}
	if !p.Class.Valid() {
		return fmt.Errorf("invalid card class %d", p.Class)
	}

	owner := p.Owner
	if owner == "" {
		owner = ctx.Tx.From
	} else {
		// Validate that the provided owner is a real ed25519 pubkey.
		if _, err := crypto.PubKeyFromHex(owner); err != nil {
			return fmt.Errorf("invalid owner pubkey: %w", err)
		}
	}

	last, err := ctx.State.GetCounter(core.CounterNextCardID)
	if err != nil {
		return fmt.Errorf("card counter: %w", err)
	}
	id := last + 1
	if err := ctx.State.SetCounter(core.CounterNextCardID, id); err != nil {
		return err
	}

	card := &core.Card{
		ID:       id,
		Name:     p.Name,
		Class:    p.Class,
		Owner:    owner,
		MintedAt: ctx.Block.Header.Timestamp,
	}
	if err := ctx.State.SetCard(card); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventCardMinted,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"card_id": id, "class": p.Class.String(), "owner": owner},
		})
	}
	return nil
}

func handleTransferCard(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferCardPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer_card payload: %w", err)
	}
	if p.To == "" {
		return errors.New("to address required")
	}
	if _, err := crypto.PubKeyFromHex(p.To); err != nil {
		return fmt.Errorf("invalid to pubkey: %w", err)
	}

	card, err := ctx.State.GetCard(p.CardID)
	if err != nil {
		return fmt.Errorf("card %d not found: %w", p.CardID, err)
	}
	if card.Owner != ctx.Tx.From {
		return errors.New("only the card owner can transfer it")
	}
	if card.ActiveListingID != "" {
		return fmt.Errorf("card %d has an active listing; cancel it before transferring", p.CardID)
	}

	from := card.Owner
	card.Owner = p.To
	if err := ctx.State.SetCard(card); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventCardTransfer,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"card_id": p.CardID, "from": from, "to": p.To},
		})
	}
	return nil
}

func handleBurnCard(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BurnCardPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode burn_card payload: %w", err)
	}

	card, err := ctx.State.GetCard(p.CardID)
	if err != nil {
		return fmt.Errorf("card %d not found: %w", p.CardID, err)
	}
	if card.Owner != ctx.Tx.From {
		return errors.New("only the card owner can burn it")
	}
	if card.ActiveListingID != "" {
		return fmt.Errorf("card %d has an active listing; cancel it before burning", p.CardID)
	}

	if err := ctx.State.DeleteCard(p.CardID); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventCardBurned,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"card_id": p.CardID, "owner": card.Owner},
		})
	}
	return nil
}
