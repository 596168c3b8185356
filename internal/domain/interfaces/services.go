package interfaces

import (
	"context"

	domaintypes "peerlink/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// Signer signs payloads with the local identity and verifies peer signatures.
type Signer interface {
	Sign(payload []byte) []byte
	Verify(payload, signature []byte, pub domaintypes.Ed25519Public) bool
}

// TokenSource yields a bearer token, logging in again when the cached one is
// missing or about to expire.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// KeyResolver maps peer identifiers to their published keys.
type KeyResolver interface {
	Resolve(ctx context.Context, peer domaintypes.Username) (domaintypes.PeerPublicKey, error)
}

// Outbound accepts serialized frames for transmission over the live connection.
type Outbound interface {
	Enqueue(ctx context.Context, id string, frame []byte) error
}
