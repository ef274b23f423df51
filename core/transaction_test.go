package core_test

import (
	"testing"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/wallet"
)

// TestTransactionSignVerify ensures transaction signing and verification work.
func TestTransactionSignVerify(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}

	tx, err := w.NewTx("test-chain", core.TxTransfer, 0, 0, core.TransferPayload{
		To:     "deadbeef",
		Amount: 100,
	})
	if err != nil {
		t.Fatalf("NewTx: %v", err)
	}
	if tx.ID == "" {
		t.Error("tx ID should be set after signing")
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Tamper with the fee to check that verification catches it.
	tx.Fee = 999
	if err := tx.Verify(); err == nil {
		t.Error("tampered tx should fail verification")
	}
}

// TestTransactionChainIDCovered ensures the chain ID is part of the signed
// body, so a tx cannot be replayed onto another network by rewriting it.
func TestTransactionChainIDCovered(t *testing.T) {
	w, _ := wallet.Generate()
	tx, err := w.NewTx("chain-a", core.TxRegisterPlayer, 0, 0, core.RegisterPlayerPayload{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	origHash := tx.Hash()

	tx.ChainID = "chain-b"
	if tx.Hash() == origHash {
		t.Error("chain ID change should alter the tx hash")
	}
	if err := tx.Verify(); err == nil {
		t.Error("chain-swapped tx should fail verification")
	}
}

func TestTransactionVerifyRejectsBadFrom(t *testing.T) {
	tx, err := core.NewTransaction("test-chain", core.TxTransfer, "not-a-pubkey", 0, 0, core.TransferPayload{To: "aa", Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Verify(); err == nil {
		t.Error("tx with malformed from should fail verification")
	}
}

// TestMempool verifies add/remove/pending operations.
func TestMempool(t *testing.T) {
	mp := core.NewMempool()
	w, _ := wallet.Generate()

	tx, _ := w.Transfer("test-chain", "aa", 1, 0, 0)
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mp.Size() != 1 {
		t.Errorf("size: got %d want 1", mp.Size())
	}
	// Duplicate should fail
	if err := mp.Add(tx); err == nil {
		t.Error("adding duplicate tx should fail")
	}

	pending := mp.Pending(10)
	if len(pending) != 1 {
		t.Errorf("pending: got %d want 1", len(pending))
	}

	mp.Remove([]string{tx.ID})
	if mp.Size() != 0 {
		t.Error("pool should be empty after remove")
	}
}

// TestBlockHash ensures that hashing a block is deterministic.
func TestBlockHash(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	block := core.NewBlock(1, "0000", w.PubKey(), nil)
	block.Sign(w.PrivKey())

	if block.Hash == "" {
		t.Error("hash should be set after signing")
	}
	if block.ComputeHash() != block.Hash {
		t.Error("ComputeHash() does not match stored hash")
	}
}
