package card_test

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

const chainID = "card-test"

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

func TestMintCard(t *testing.T) {
	e := newEnv(t)
	minter, _ := wallet.Generate()

	require.NoError(t, e.submit(minter, core.TxMintCard, core.MintCardPayload{
		Class: core.ClassNecromancer,
		Name:  "Morthis",
	}))

	card, err := e.state.GetCard(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), card.ID)
	assert.Equal(t, "Morthis", card.Name)
	assert.Equal(t, core.ClassNecromancer, card.Class)
	assert.Equal(t, minter.PubKey(), card.Owner, "empty owner mints to sender")

	// IDs are sequential.
	recipient, _ := wallet.Generate()
	require.NoError(t, e.submit(minter, core.TxMintCard, core.MintCardPayload{
		Class: core.ClassWarrior,
		Name:  "Brann",
		Owner: recipient.PubKey(),
	}))
	card, err = e.state.GetCard(2)
	require.NoError(t, err)
	assert.Equal(t, recipient.PubKey(), card.Owner)
}

func TestMintCardInvalidClass(t *testing.T) {
	e := newEnv(t)
	minter, _ := wallet.Generate()
	err := e.submit(minter, core.TxMintCard, core.MintCardPayload{
		Class: core.CharacterClass(core.NumClasses),
		Name:  "glitch",
	})
	assert.Error(t, err)
}

func TestTransferCard(t *testing.T) {
	e := newEnv(t)
	owner, _ := wallet.Generate()
	other, _ := wallet.Generate()

	require.NoError(t, e.submit(owner, core.TxMintCard, core.MintCardPayload{Class: core.ClassRogue, Name: "Vex"}))

	// Non-owners cannot transfer.
	err := e.submit(other, core.TxTransferCard, core.TransferCardPayload{CardID: 1, To: other.PubKey()})
	assert.Error(t, err)

	require.NoError(t, e.submit(owner, core.TxTransferCard, core.TransferCardPayload{CardID: 1, To: other.PubKey()}))
	card, err := e.state.GetCard(1)
	require.NoError(t, err)
	assert.Equal(t, other.PubKey(), card.Owner)
}

func TestBurnCard(t *testing.T) {
	e := newEnv(t)
	owner, _ := wallet.Generate()
	other, _ := wallet.Generate()

	require.NoError(t, e.submit(owner, core.TxMintCard, core.MintCardPayload{Class: core.ClassMage, Name: "Isolde"}))

	err := e.submit(other, core.TxBurnCard, core.BurnCardPayload{CardID: 1})
	assert.Error(t, err, "only the owner may burn")

	require.NoError(t, e.submit(owner, core.TxBurnCard, core.BurnCardPayload{CardID: 1}))
	_, err = e.state.GetCard(1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// Listed cards are locked against transfer and burn until the listing clears.
func TestListedCardLocked(t *testing.T) {
	e := newEnv(t)
	owner, _ := wallet.Generate()
	other, _ := wallet.Generate()

	require.NoError(t, e.submit(owner, core.TxMintCard, core.MintCardPayload{Class: core.ClassPaladin, Name: "Aurel"}))
	require.NoError(t, e.submit(owner, core.TxListCard, core.ListCardPayload{CardID: 1, Price: 500}))

	err := e.submit(owner, core.TxTransferCard, core.TransferCardPayload{CardID: 1, To: other.PubKey()})
	assert.Error(t, err)
	err = e.submit(owner, core.TxBurnCard, core.BurnCardPayload{CardID: 1})
	assert.Error(t, err)
}
