package core_test

import (
	"bytes"
	"testing"

	"github.com/karuha/arenachain/core"
)

func basePayload() core.ResolveBattlePayload {
	return core.ResolveBattlePayload{
		BattleID:       7,
		Player2:        "bbbb",
		IsComputer:     false,
		Player1TokenID: 5,
		Player2TokenID: 9,
		Winner:         "aaaa",
		WinnerExp:      150,
		LoserExp:       50,
	}
}

// TestOutcomeDigestDeterministic: same inputs, same digest.
func TestOutcomeDigestDeterministic(t *testing.T) {
	p := basePayload()
	d1 := core.OutcomeDigest("chain", &p)
	d2 := core.OutcomeDigest("chain", &p)
	if !bytes.Equal(d1, d2) {
		t.Error("digest should be deterministic")
	}
	if len(d1) == 0 {
		t.Error("digest should not be empty")
	}
}

// TestOutcomeDigestFieldSensitivity: every attested field, and the chain ID,
// must change the digest. The attestation itself must not.
func TestOutcomeDigestFieldSensitivity(t *testing.T) {
	base := core.OutcomeDigest("chain", ptr(basePayload()))

	cases := map[string]func() []byte{
		"chain_id": func() []byte {
			return core.OutcomeDigest("other-chain", ptr(basePayload()))
		},
		"battle_id": func() []byte {
			p := basePayload()
			p.BattleID = 8
			return core.OutcomeDigest("chain", &p)
		},
		"player2": func() []byte {
			p := basePayload()
			p.Player2 = "cccc"
			return core.OutcomeDigest("chain", &p)
		},
		"is_computer": func() []byte {
			p := basePayload()
			p.IsComputer = true
			return core.OutcomeDigest("chain", &p)
		},
		"player1_token": func() []byte {
			p := basePayload()
			p.Player1TokenID = 6
			return core.OutcomeDigest("chain", &p)
		},
		"player2_token": func() []byte {
			p := basePayload()
			p.Player2TokenID = 10
			return core.OutcomeDigest("chain", &p)
		},
		"winner": func() []byte {
			p := basePayload()
			p.Winner = "bbbb"
			return core.OutcomeDigest("chain", &p)
		},
		"winner_exp": func() []byte {
			p := basePayload()
			p.WinnerExp = 151
			return core.OutcomeDigest("chain", &p)
		},
		"loser_exp": func() []byte {
			p := basePayload()
			p.LoserExp = 51
			return core.OutcomeDigest("chain", &p)
		},
	}
	for name, digest := range cases {
		if bytes.Equal(base, digest()) {
			t.Errorf("%s: change did not alter the digest", name)
		}
	}

	// Attestation is the signature over the digest, not an input to it.
	p := basePayload()
	p.Attestation = "ffff"
	if !bytes.Equal(base, core.OutcomeDigest("chain", &p)) {
		t.Error("attestation field must not affect the digest")
	}
}

// TestOutcomeDigestNoAmbiguity: length-prefixed encoding keeps adjacent
// string fields from sliding into each other.
func TestOutcomeDigestNoAmbiguity(t *testing.T) {
	p1 := basePayload()
	p1.Player2 = "ab"
	p2 := basePayload()
	p2.Player2 = "a"
	// Shifting a byte between fields must not produce the same digest.
	d1 := core.OutcomeDigest("chainx", &p1)
	d2 := core.OutcomeDigest("chainxa", &p2)
	if bytes.Equal(d1, d2) {
		t.Error("field boundaries should be unambiguous")
	}
}

func ptr(p core.ResolveBattlePayload) *core.ResolveBattlePayload { return &p }
