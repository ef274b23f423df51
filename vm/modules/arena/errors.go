package arena

import "errors"

// Sentinel errors for the battle ledger. Handlers wrap these with context;
// callers branch with errors.Is.
var (
	ErrAlreadyRegistered    = errors.New("player already registered")
	ErrBattleResolved       = errors.New("battle already resolved")
	ErrOpponentAlreadySet   = errors.New("battle opponent already set")
	ErrInvalidOpponent      = errors.New("invalid opponent address")
	ErrOwnershipMismatch    = errors.New("card not owned by participant")
	ErrWinnerNotParticipant = errors.New("winner is not a battle participant")
	ErrInvalidAttestation   = errors.New("invalid outcome attestation")
	ErrNotAuthority         = errors.New("sender is not the battle authority")
	ErrUnknownClass         = errors.New("unknown character class")
)
