// Package identity manages creation, encryption and loading of the local
// identity, and signs and verifies frames with it.
//
// It enforces passphrase policy, generates X25519 and Ed25519 key pairs, and
// persists them via the domain.IdentityStore. A Signer wraps a loaded
// identity for the pure, CPU-only sign/verify operations used by the auth
// and message services.
package identity
