// Package crypto holds the chain's signing primitives: ed25519 keys,
// hex-encoded signatures and SHA-256 digests. An account's identity is its
// hex public key; the short Address form exists for display only.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PrivateKey is raw ed25519 private key material.
type PrivateKey []byte

// PublicKey is raw ed25519 public key material.
type PublicKey []byte

// GenerateKeyPair draws a fresh ed25519 key pair from crypto/rand.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PrivateKey(priv), PublicKey(pub), nil
}

// Public derives the matching public key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
}

// Hex encodes the private key as hex.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Hex encodes the public key as 64 hex characters.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub)
}

// Address shortens the key to 40 hex characters: the first 20 bytes of
// SHA-256(pubkey).
func (pub PublicKey) Address() string {
	return hex.EncodeToString(HashBytes(pub)[:20])
}

// PubKeyFromHex parses a hex public key, rejecting wrong-length input.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return PublicKey(b), nil
}

// PrivKeyFromHex parses a hex private key, rejecting wrong-length input.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("privkey must be %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	return PrivateKey(b), nil
}
