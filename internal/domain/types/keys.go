package types

import (
	"encoding/base64"
	"fmt"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is all zeros.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) { return encodeKey(p[:]), nil }

// UnmarshalText decodes a standard base64 key of exactly 32 bytes.
func (p *X25519Public) UnmarshalText(b []byte) error { return decodeKey(p[:], b, "x25519 public") }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is all zeros.
func (p Ed25519Public) IsZero() bool { return p == Ed25519Public{} }

// MarshalText encodes the key as standard base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return encodeKey(p[:]), nil }

// UnmarshalText decodes a standard base64 key of exactly 32 bytes.
func (p *Ed25519Public) UnmarshalText(b []byte) error { return decodeKey(p[:], b, "ed25519 public") }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

func encodeKey(k []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(k)))
	base64.StdEncoding.Encode(out, k)
	return out
}

func decodeKey(dst []byte, text []byte, kind string) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		return fmt.Errorf("%s key: %w", kind, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%s key: want %d bytes, got %d", kind, len(dst), n)
	}
	copy(dst, raw[:n])
	return nil
}
