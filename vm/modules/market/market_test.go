package market_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/events"
	"github.com/karuha/arenachain/internal/testutil"
	"github.com/karuha/arenachain/storage"
	"github.com/karuha/arenachain/vm"
	"github.com/karuha/arenachain/wallet"

	_ "github.com/karuha/arenachain/vm/modules/card"
	_ "github.com/karuha/arenachain/vm/modules/market"
)

const chainID = "market-test"

type env struct {
	t      *testing.T
	state  *storage.StateDB
	exec   *vm.Executor
	block  *core.Block
	nonces map[string]uint64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	state := testutil.NewStateDB()
	return &env{
		t:      t,
		state:  state,
		exec:   vm.NewExecutor(chainID, state, events.NewEmitter()),
		block:  core.NewBlock(1, "0000", "proposer", nil),
		nonces: make(map[string]uint64),
	}
}

func (e *env) submit(w *wallet.Wallet, typ core.TxType, payload any) error {
	e.t.Helper()
	tx, err := w.NewTx(chainID, typ, e.nonces[w.PubKey()], 0, payload)
	require.NoError(e.t, err)
	if err := e.exec.ExecuteTx(e.block, tx); err != nil {
		return err
	}
	e.nonces[w.PubKey()]++
	return nil
}

func (e *env) fund(w *wallet.Wallet, amount uint64) {
	e.t.Helper()
	require.NoError(e.t, e.state.SetAccount(&core.Account{Address: w.PubKey(), Balance: amount}))
}

// listingID reads the card's active listing marker.
func (e *env) listingID(cardID uint64) string {
	e.t.Helper()
	card, err := e.state.GetCard(cardID)
	require.NoError(e.t, err)
	require.NotEmpty(e.t, card.ActiveListingID)
	return card.ActiveListingID
}

func TestListAndBuyCard(t *testing.T) {
	e := newEnv(t)
	seller, _ := wallet.Generate()
	buyer, _ := wallet.Generate()
	e.fund(buyer, 10_000)

	require.NoError(t, e.submit(seller, core.TxMintCard, core.MintCardPayload{Class: core.ClassRanger, Name: "Fen"}))
	require.NoError(t, e.submit(seller, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 4_000}))

	id := e.listingID(1)
	listing, err := e.state.GetListing(id)
	require.NoError(t, err)
	assert.True(t, listing.Active)
	assert.Equal(t, uint64(4_000), listing.Price)
	assert.Equal(t, seller.PubKey(), listing.Seller)

	require.NoError(t, e.submit(buyer, core.TxBuyCard, core.BuyCardPayload{ListingID: id}))

	// Card moved, listing cleared, funds moved.
	card, err := e.state.GetCard(1)
	require.NoError(t, err)
	assert.Equal(t, buyer.PubKey(), card.Owner)
	assert.Empty(t, card.ActiveListingID)

	listing, err = e.state.GetListing(id)
	require.NoError(t, err)
	assert.False(t, listing.Active)

	buyerAcc, _ := e.state.GetAccount(buyer.PubKey())
	assert.Equal(t, uint64(6_000), buyerAcc.Balance)
	sellerAcc, _ := e.state.GetAccount(seller.PubKey())
	assert.Equal(t, uint64(4_000), sellerAcc.Balance)

	// The spent listing cannot be bought again.
	err = e.submit(buyer, core.TxBuyCard, core.BuyCardPayload{ListingID: id})
	assert.Error(t, err)
}

func TestListCardValidation(t *testing.T) {
	e := newEnv(t)
	seller, _ := wallet.Generate()
	other, _ := wallet.Generate()

	require.NoError(t, e.submit(seller, core.TxMintCard, core.MintCardPayload{Class: core.ClassMage, Name: "Lys"}))

	err := e.submit(seller, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 0})
	assert.Error(t, err, "zero price")

	err = e.submit(other, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 100})
	assert.Error(t, err, "only the owner may list")

	require.NoError(t, e.submit(seller, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 100}))
	err = e.submit(seller, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 200})
	assert.Error(t, err, "double listing")
}

func TestBuyCardInsufficientBalance(t *testing.T) {
	e := newEnv(t)
	seller, _ := wallet.Generate()
	buyer, _ := wallet.Generate()
	e.fund(buyer, 50)

	require.NoError(t, e.submit(seller, core.TxMintCard, core.MintCardPayload{Class: core.ClassRogue, Name: "Nix"}))
	require.NoError(t, e.submit(seller, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 100}))

	id := e.listingID(1)
	err := e.submit(buyer, core.TxBuyCard, core.BuyCardPayload{ListingID: id})
	assert.Error(t, err)

	// Failed purchase leaves the listing and ownership untouched.
	listing, _ := e.state.GetListing(id)
	assert.True(t, listing.Active)
	card, _ := e.state.GetCard(1)
	assert.Equal(t, seller.PubKey(), card.Owner)
}

func TestSellerCannotBuyOwnListing(t *testing.T) {
	e := newEnv(t)
	seller, _ := wallet.Generate()
	e.fund(seller, 1_000)

	require.NoError(t, e.submit(seller, core.TxMintCard, core.MintCardPayload{Class: core.ClassWarrior, Name: "Garr"}))
	require.NoError(t, e.submit(seller, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 100}))

	err := e.submit(seller, core.TxBuyCard, core.BuyCardPayload{ListingID: e.listingID(1)})
	assert.Error(t, err)
}
