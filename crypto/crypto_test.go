package crypto_test

import (
	"testing"

	"github.com/karuha/arenachain/crypto"
)

// TestKeyGenAndAddress verifies that key generation and address derivation work.
func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(pub.Hex()) != 64 {
		t.Errorf("pubkey hex length: got %d want 64", len(pub.Hex()))
	}
	addr := pub.Address()
	if len(addr) != 40 {
		t.Errorf("address length: got %d want 40", len(addr))
	}
	// Roundtrip: derived public key should match
	derived := priv.Public()
	if derived.Hex() != pub.Hex() {
		t.Error("derived public key does not match")
	}
}

// TestSignVerify ensures Sign/Verify round-trips correctly.
func TestSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("hello arenachain")
	sig := crypto.Sign(priv, data)
	if err := crypto.Verify(pub, data, sig); err != nil {
		t.Errorf("valid signature failed: %v", err)
	}
	if err := crypto.Verify(pub, []byte("tampered"), sig); err == nil {
		t.Error("tampered data should fail verification")
	}
}

// TestVerifyHex checks the pubkey-hex convenience wrapper used for
// authority attestations.
func TestVerifyHex(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("attested outcome")
	sig := crypto.Sign(priv, data)

	if err := crypto.VerifyHex(pub.Hex(), data, sig); err != nil {
		t.Errorf("VerifyHex: %v", err)
	}
	if err := crypto.VerifyHex("zzzz", data, sig); err == nil {
		t.Error("malformed pubkey hex should fail")
	}
	_, otherPub, _ := crypto.GenerateKeyPair()
	if err := crypto.VerifyHex(otherPub.Hex(), data, sig); err == nil {
		t.Error("wrong key should fail verification")
	}
}
