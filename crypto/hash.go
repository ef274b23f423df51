package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash digests data with SHA-256 and returns lowercase hex. Block hashes,
// tx IDs and state roots all go through here.
func Hash(data []byte) string {
	return hex.EncodeToString(HashBytes(data))
}

// HashBytes digests data with SHA-256 and returns the raw 32 bytes.
func HashBytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
