package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/karuha/arenachain/crypto"
)

// TxType names the operation a transaction performs; each maps to one
// handler in a vm module.
type TxType string

const (
	TxTransfer          TxType = "transfer"
	TxRegisterPlayer    TxType = "register_player"
	TxRegisterBattle    TxType = "register_battle"
	TxResolveBattle     TxType = "resolve_battle"
	TxTransferAuthority TxType = "transfer_authority"
	TxMintCard          TxType = "mint_card"
	TxTransferCard      TxType = "transfer_card"
	TxBurnCard          TxType = "burn_card"
	TxListCard          TxType = "list_card"
	TxBuyCard           TxType = "buy_card"
)

// Transaction is the unit of work on the chain. From is the sender's full
// hex ed25519 public key. ChainID pins the transaction to one network so
// it cannot be replayed on another. ID doubles as the signing hash and
// covers every field except Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// NewTransaction builds an unsigned transaction stamped with the current
// time.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// signedFields is the serialisation the signature covers: everything but
// ID and Signature.
type signedFields struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash digests the signed fields deterministically. Marshalling these
// types cannot fail, so an empty return only signals programmer error.
func (tx *Transaction) Hash() string {
	data, err := json.Marshal(signedFields{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	})
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign fills in ID and Signature using the sender's private key.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks that From parses as a public key and that the signature
// matches the recomputed hash.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// TransferPayload moves native tokens.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// RegisterPlayerPayload claims a display name for the sender.
type RegisterPlayerPayload struct {
	Name string `json:"name"`
}

// RegisterBattlePayload opens a battle with the sender as player one.
type RegisterBattlePayload struct {
	Name string `json:"name"`
}

// ResolveBattlePayload commits an externally computed battle outcome.
// Attestation is the authority's signature over OutcomeDigest of this
// payload; it covers every other field, so changing any of them voids it.
type ResolveBattlePayload struct {
	BattleID       uint64 `json:"battle_id"`
	Player2        string `json:"player2"` // opponent pubkey hex
	IsComputer     bool   `json:"is_computer"`
	Player1TokenID uint64 `json:"player1_token_id"`
	Player2TokenID uint64 `json:"player2_token_id"`
	Winner         string `json:"winner"` // pubkey hex of the winning side
	WinnerExp      uint64 `json:"winner_exp"`
	LoserExp       uint64 `json:"loser_exp"`
	Attestation    string `json:"attestation"` // hex ed25519 signature by the authority
}

// TransferAuthorityPayload hands the battle authority to a new pubkey.
type TransferAuthorityPayload struct {
	To string `json:"to"` // pubkey hex
}

// MintCardPayload creates a character card.
type MintCardPayload struct {
	Class CharacterClass `json:"class"`
	Name  string         `json:"name"`
	Owner string         `json:"owner,omitempty"` // recipient pubkey hex; empty means the sender
}

// TransferCardPayload moves a card to a new owner.
type TransferCardPayload struct {
	CardID uint64 `json:"card_id"`
	To     string `json:"to"`
}

// BurnCardPayload destroys a card for good.
type BurnCardPayload struct {
	CardID uint64 `json:"card_id"`
}

// ListCardPayload puts a card up for sale.
type ListCardPayload struct {
	CardID uint64 `json:"card_id"`
	Price  uint64 `json:"price"`
}

// BuyCardPayload takes an active market listing.
type BuyCardPayload struct {
	ListingID string `json:"listing_id"`
}
