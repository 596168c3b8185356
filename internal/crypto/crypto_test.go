package crypto_test

import (
	"bytes"
	"testing"

	"peerlink/internal/crypto"
)

func TestEd25519_SignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	msg := []byte("challenge-nonce")
	sig := crypto.SignEd25519(priv, msg)
	if !crypto.VerifyEd25519(pub, msg, sig) {
		t.Fatal("signature did not verify")
	}
	if !bytes.Equal(sig, crypto.SignEd25519(priv, msg)) {
		t.Fatal("signing is not deterministic")
	}
	if crypto.VerifyEd25519(pub, []byte("other"), sig) {
		t.Fatal("signature verified over a different message")
	}
	if crypto.VerifyEd25519(pub, msg, sig[:10]) {
		t.Fatal("truncated signature verified")
	}
}

func TestPublicKeysDeriveFromPrivate(t *testing.T) {
	xpriv, xpub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	derived, err := crypto.PublicX25519(xpriv)
	if err != nil {
		t.Fatalf("PublicX25519: %v", err)
	}
	if derived != xpub {
		t.Fatal("derived x25519 public key differs from generated one")
	}

	edpriv, edpub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	if crypto.PublicEd25519(edpriv) != edpub {
		t.Fatal("derived ed25519 public key differs from generated one")
	}
}

func TestFingerprint_StableAndGrouped(t *testing.T) {
	a := crypto.Fingerprint([]byte{1, 2, 3})
	if a != crypto.Fingerprint([]byte{1, 2, 3}) {
		t.Fatal("fingerprint not stable")
	}
	if a == crypto.Fingerprint([]byte{1, 2, 4}) {
		t.Fatal("different keys share a fingerprint")
	}
	// 20 hex chars in 5 groups of 4 separated by spaces.
	if len(a) != 24 {
		t.Fatalf("want 24 chars, got %d (%q)", len(a), a)
	}
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	crypto.Wipe(b)
	if !bytes.Equal(b, make([]byte, 4)) {
		t.Fatalf("buffer not wiped: %v", b)
	}
}

func TestFromB64_AcceptsUnpadded(t *testing.T) {
	want := []byte("peer")
	for _, s := range []string{crypto.B64(want), "cGVlcg", " cGVlcg==\n"} {
		got, err := crypto.FromB64(s)
		if err != nil || !bytes.Equal(got, want) {
			t.Fatalf("FromB64(%q) = %q, %v", s, got, err)
		}
	}
}
