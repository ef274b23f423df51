package wallet

import (
	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target network.
// nonce should match the account's current nonce.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer creates a signed transfer transaction.
func (w *Wallet) Transfer(chainID, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransfer, nonce, fee, core.TransferPayload{
		To:     to,
		Amount: amount,
	})
}

// RegisterPlayer claims a display name for this wallet's key.
func (w *Wallet) RegisterPlayer(chainID, name string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxRegisterPlayer, nonce, fee, core.RegisterPlayerPayload{
		Name: name,
	})
}

// RegisterBattle opens a new battle with this wallet as player one.
func (w *Wallet) RegisterBattle(chainID, name string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxRegisterBattle, nonce, fee, core.RegisterBattlePayload{
		Name: name,
	})
}

// ResolveBattle submits an attested battle outcome. The payload's Attestation
// field must already carry the authority signature (see AttestOutcome).
func (w *Wallet) ResolveBattle(chainID string, p core.ResolveBattlePayload, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxResolveBattle, nonce, fee, p)
}

// MintCard mints a character card. owner may be empty to mint to this wallet.
func (w *Wallet) MintCard(chainID string, class core.CharacterClass, name, owner string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxMintCard, nonce, fee, core.MintCardPayload{
		Class: class,
		Name:  name,
		Owner: owner,
	})
}

// TransferCard moves a card this wallet owns to another pubkey.
func (w *Wallet) TransferCard(chainID string, cardID uint64, to string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransferCard, nonce, fee, core.TransferCardPayload{
		CardID: cardID,
		To:     to,
	})
}

// AttestOutcome signs the outcome digest of p with this wallet's key and
// returns the hex signature. Only useful when this wallet is the chain's
// battle authority; any other key's attestation will be rejected on-chain.
func (w *Wallet) AttestOutcome(chainID string, p *core.ResolveBattlePayload) string {
	return crypto.Sign(w.priv, core.OutcomeDigest(chainID, p))
}
