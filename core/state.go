package core

import "fmt"

// Account holds a participant's token balance and replay-protection nonce.
// Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// CharacterClass selects a card's base-stat row. The order is fixed; stored
// battles and cards encode the numeric value.
type CharacterClass uint8

const (
	ClassWarrior CharacterClass = iota
	ClassMage
	ClassRanger
	ClassRogue
	ClassPaladin
	ClassNecromancer

	// NumClasses is the count of valid classes; values >= NumClasses are unknown.
	NumClasses = 6
)

var classNames = [NumClasses]string{
	"warrior", "mage", "ranger", "rogue", "paladin", "necromancer",
}

// String returns the lowercase class name, or "unknown" for out-of-range values.
func (c CharacterClass) String() string {
	if c >= NumClasses {
		return "unknown"
	}
	return classNames[c]
}

// Valid reports whether c is one of the six defined classes.
func (c CharacterClass) Valid() bool { return c < NumClasses }

// ParseCharacterClass returns the class with the given lowercase name.
func ParseCharacterClass(name string) (CharacterClass, error) {
	for i, n := range classNames {
		if n == name {
			return CharacterClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown character class %q", name)
}

// Player is a registered participant. Created on first registration, never
// deleted.
type Player struct {
	Address      string `json:"address"` // pubkey hex, immutable identity key
	Name         string `json:"name"`    // set once at registration
	TotalWins    uint64 `json:"total_wins"`
	TotalLosses  uint64 `json:"total_losses"`
	Experience   uint64 `json:"experience"` // cumulative across all characters
	RegisteredAt int64  `json:"registered_at"`
}

// CharacterStats is the per-(player, card) progression record. Lazily created
// on the first battle outcome that touches the pair; Class keeps its zero
// value on that path because the resolution flow never sets it.
type CharacterStats struct {
	Player  string         `json:"player"` // pubkey hex
	TokenID uint64         `json:"token_id"`
	Class   CharacterClass `json:"class"`
	Level   uint64         `json:"level"`
	Exp     uint64         `json:"exp"`
	Wins    uint64         `json:"wins"`
	Losses  uint64         `json:"losses"`
}

// Battle is a single match record. Player2, the token IDs, Winner and the
// Resolved flag stay zero-valued until exactly one resolve transaction
// commits; there is no cancellation and no expiry.
type Battle struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	Player1        string `json:"player1"` // creator pubkey hex
	Player2        string `json:"player2,omitempty"`
	Player1TokenID uint64 `json:"player1_token_id,omitempty"`
	Player2TokenID uint64 `json:"player2_token_id,omitempty"`
	StartTime      int64  `json:"start_time"`
	Resolved       bool   `json:"resolved"`
	Winner         string `json:"winner,omitempty"`
	ResolvedAt     int64  `json:"resolved_at,omitempty"`
}

// Card is an on-chain NFT: a playable character token. Owner lookups on cards
// are the ownership oracle the battle ledger consults.
type Card struct {
	ID              uint64         `json:"id"`
	Name            string         `json:"name"`
	Class           CharacterClass `json:"class"` // fixed at mint
	Owner           string         `json:"owner"` // pubkey hex
	MintedAt        int64          `json:"minted_at"`
	ActiveListingID string         `json:"active_listing_id,omitempty"` // non-empty while listed
}

// MarketListing is a P2P card sale offer.
type MarketListing struct {
	ID        string `json:"id"`
	CardID    uint64 `json:"card_id"`
	Seller    string `json:"seller"` // pubkey hex
	Price     uint64 `json:"price"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
}

// Counter names used with State.GetCounter/SetCounter.
const (
	CounterNextBattleID = "next_battle_id" // last allocated battle ID; first battle gets 1
	CounterTotalBattles = "total_battles"
	CounterNextCardID   = "next_card_id"
)

// State is the full chain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Players
	GetPlayer(address string) (*Player, error)
	SetPlayer(p *Player) error

	// Battles
	GetBattle(id uint64) (*Battle, error)
	SetBattle(b *Battle) error

	// Character stats, keyed by (player address, token ID)
	GetCharacterStats(player string, tokenID uint64) (*CharacterStats, error)
	SetCharacterStats(cs *CharacterStats) error

	// Cards
	GetCard(id uint64) (*Card, error)
	SetCard(c *Card) error
	DeleteCard(id uint64) error

	// Market
	GetListing(id string) (*MarketListing, error)
	SetListing(l *MarketListing) error

	// Named monotonic counters (battle IDs, card IDs, totals).
	// GetCounter returns 0 for a counter that was never set.
	GetCounter(name string) (uint64, error)
	SetCounter(name string, value uint64) error

	// Battle authority: the pubkey hex whose attestation commits outcomes.
	// GetAuthority returns ErrNotFound until genesis sets it.
	GetAuthority() (string, error)
	SetAuthority(pubkeyHex string) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}
