// Package market is the player-to-player card marketplace: owners list
// cards for the native token, buyers take active listings. A listed card is
// locked against transfer and burn until the listing clears.
package market

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
	vm.Register(core.TxListCard, handleListCard)
	vm.Register(core.TxBuyCard, handleBuyCard)
}

var (
	errZeroPrice   = errors.New("price must be > 0")
	errNotOwner    = errors.New("only the card owner can list it")
	errOwnListing  = errors.New("seller cannot buy their own listing")
	errListingDone = errors.New("listing is no longer active")
)

func handleListCard(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ListCardPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode list_card payload: %w", err)
	}
	if p.Price == 0 {
		return errZeroPrice
	}

	card, err := ctx.State.GetCard(p.CardID)
	if err != nil {
		return fmt.Errorf("card %d not found: %w", p.CardID, err)
	}
	if card.Owner != ctx.Tx.From {
		return errNotOwner
	}
	if card.ActiveListingID != "" {
		return fmt.Errorf("card %d is already listed (listing %s)", p.CardID, card.ActiveListingID)
	}

	// The listing ID is derived from the tx ID, so it is unique and
	// reproducible by every node.
	listingID := crypto.Hash([]byte(fmt.Sprintf("%s:listing:%d", ctx.Tx.ID, p.CardID)))
	if err := ctx.State.SetListing(&core.MarketListing{
		ID:        listingID,
		CardID:    p.CardID,
		Seller:    ctx.Tx.From,
		Price:     p.Price,
		Active:    true,
		CreatedAt: ctx.Block.Header.Timestamp,
	}); err != nil {
		return err
	}

	// The back-reference on the card is what locks it while listed.
	card.ActiveListingID = listingID
	if err := ctx.State.SetCard(card); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventMarketList,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"listing_id": listingID, "card_id": p.CardID, "price": p.Price},
		})
	}
	return nil
}

func handleBuyCard(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BuyCardPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode buy_card payload: %w", err)
	}

	listing, err := ctx.State.GetListing(p.ListingID)
	if err != nil {
		return fmt.Errorf("listing %q not found: %w", p.ListingID, err)
	}
	if !listing.Active {
		return errListingDone
	}
	if listing.Seller == ctx.Tx.From {
		return errOwnListing
	}

	if err := paySeller(ctx, listing); err != nil {
		return err
	}

	card, err := ctx.State.GetCard(listing.CardID)
	if err != nil {
		return fmt.Errorf("card %d not found: %w", listing.CardID, err)
	}
	card.Owner = ctx.Tx.From
	card.ActiveListingID = ""
	if err := ctx.State.SetCard(card); err != nil {
		return err
	}

	listing.Active = false
	if err := ctx.State.SetListing(listing); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventMarketBuy,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"listing_id": p.ListingID,
				"card_id":    listing.CardID,
				"buyer":      ctx.Tx.From,
				"seller":     listing.Seller,
				"price":      listing.Price,
			},
		})
	}
	return nil
}

// paySeller moves the listing price from the buyer (tx sender) to the
// seller.
func paySeller(ctx *vm.Context, listing *core.MarketListing) error {
	buyer, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	if buyer.Balance < listing.Price {
		return fmt.Errorf("insufficient balance: have %d need %d", buyer.Balance, listing.Price)
	}
	buyer.Balance -= listing.Price
	if err := ctx.State.SetAccount(buyer); err != nil {
		return err
	}

	seller, err := ctx.State.GetAccount(listing.Seller)
	if err != nil {
		return err
	}
	seller.Balance += listing.Price
	return ctx.State.SetAccount(seller)
}
