package identity

import (
	"errors"
	"fmt"
	"unicode"

	"peerlink/internal/crypto"
	"peerlink/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)

	// ErrKeyMismatch is returned when a stored public key does not match its
	// private key, which would make every signature or envelope unverifiable.
	ErrKeyMismatch = errors.New("identity keys do not match")
)

// Service manages identity key creation and access using a backing store.
//
// The identity contains:
//   - X25519 key pair for the box construction that wraps direct-message keys.
//   - Ed25519 key pair for signing frames and login challenges.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a new identity, saves it encrypted with the passphrase,
// and returns the identity plus a short fingerprint of its public keys.
func (s *Service) GenerateIdentity(
	passphrase string,
) (domain.Identity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}

	encryptionPrivateKey, encryptionPublicKey, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, "", err
	}
	signingPrivateKey, signingPublicKey, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, "", err
	}

	id := domain.Identity{
		XPub:   encryptionPublicKey,
		XPriv:  encryptionPrivateKey,
		EdPub:  signingPublicKey,
		EdPriv: signingPrivateKey,
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, Fingerprint(id), nil
}

// LoadIdentity decrypts the local identity and checks that each public key
// belongs to its private key.
func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := checkKeyPairs(id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// FingerprintIdentity returns a short fingerprint of the local public keys.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return Fingerprint(id), nil
}

func checkKeyPairs(id domain.Identity) error {
	xpub, err := crypto.PublicX25519(id.XPriv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyMismatch, err)
	}
	if xpub != id.XPub {
		return fmt.Errorf("%w: x25519 public key", ErrKeyMismatch)
	}
	if crypto.PublicEd25519(id.EdPriv) != id.EdPub {
		return fmt.Errorf("%w: ed25519 public key", ErrKeyMismatch)
	}
	return nil
}

// Fingerprint covers both public keys so a swapped signing key is visible too.
func Fingerprint(id domain.Identity) domain.Fingerprint {
	return domain.Fingerprint(crypto.Fingerprint(id.XPub.Slice(), id.EdPub.Slice()))
}

// PeerFingerprint is Fingerprint for a directory entry.
func PeerFingerprint(k domain.PeerPublicKey) domain.Fingerprint {
	return domain.Fingerprint(crypto.Fingerprint(k.PublicKey.Slice(), k.SigningKey.Slice()))
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
