package core

import (
	"bytes"
	"encoding/binary"

	"github.com/karuha/arenachain/crypto"
)

// attestDomain separates battle-outcome signatures from every other signing
// context on the chain. Bump the version when the digest layout changes.
const attestDomain = "arenachain/battle-outcome/v1"

// OutcomeDigest returns the digest the battle authority signs to attest a
// resolution outcome. The encoding is length-prefixed with a fixed field
// order and bound to the chain ID, so a signature is only valid for this
// exact argument tuple on this exact network.
//
// The Attestation field of p is not part of the digest.
func OutcomeDigest(chainID string, p *ResolveBattlePayload) []byte {
	var buf bytes.Buffer
	writeStr := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf.Write(lenBuf[:])
		buf.WriteString(s)
	}
	writeU64 := func(v uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}

	writeStr(attestDomain)
	writeStr(chainID)
	writeU64(p.BattleID)
	writeStr(p.Player2)
	if p.IsComputer {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeU64(p.Player1TokenID)
	writeU64(p.Player2TokenID)
	writeStr(p.Winner)
	writeU64(p.WinnerExp)
	writeU64(p.LoserExp)

	return crypto.HashBytes(buf.Bytes())
}
