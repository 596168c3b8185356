// Package hybrid implements envelope encryption for direct messages.
//
// A fresh 32-byte symmetric key encrypts the body with XChaCha20-Poly1305;
// the key itself is sealed with NaCl box (X25519 + XSalsa20-Poly1305) from
// the sender's X25519 key to the recipient's. The asymmetric step therefore
// always covers 32 bytes, whatever the message size.
//
// Envelope layout:
//
//	version(1) | box nonce(24) | sealed key(48) | body nonce(24) | body ciphertext+tag
//
// The header (version through sealed key) is the associated data of the body
// AEAD, so the two layers cannot be recombined. Every failure, at either
// layer, returns *DecryptionError and no plaintext.
package hybrid
