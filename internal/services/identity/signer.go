package identity

import (
	"peerlink/internal/crypto"
	"peerlink/internal/domain"
)

// Signer holds a loaded identity for the lifetime of a client. It is
// immutable and safe for concurrent use.
type Signer struct {
	id domain.Identity
}

// NewSigner wraps id.
func NewSigner(id domain.Identity) *Signer { return &Signer{id: id} }

// Sign returns the deterministic Ed25519 signature of payload.
func (s *Signer) Sign(payload []byte) []byte {
	return crypto.SignEd25519(s.id.EdPriv, payload)
}

// Verify reports whether signature is valid for payload under pub.
func (s *Signer) Verify(payload, signature []byte, pub domain.Ed25519Public) bool {
	return crypto.VerifyEd25519(pub, payload, signature)
}

// SigningKey returns the local Ed25519 public key.
func (s *Signer) SigningKey() domain.Ed25519Public { return s.id.EdPub }

// EncryptionKey returns the local X25519 public key.
func (s *Signer) EncryptionKey() domain.X25519Public { return s.id.XPub }

// EncryptionPrivate returns the local X25519 private key for the hybrid cipher.
func (s *Signer) EncryptionPrivate() domain.X25519Private { return s.id.XPriv }

// PublicKeys returns the publishable half of the identity under username.
func (s *Signer) PublicKeys(username domain.Username) domain.PeerPublicKey {
	return s.id.PublicKeys(username)
}

var _ domain.Signer = (*Signer)(nil)
