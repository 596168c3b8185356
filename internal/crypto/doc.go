// Package crypto exposes the minimal primitives used by peerlink.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Best-effort wiping of secret buffers (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//   - Base64 helpers for keys and signatures on the wire (B64, FromB64)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat returned secrets as
// sensitive and rely on Wipe when practical to reduce lifetime in memory.
package crypto
