package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"peerlink/internal/crypto"
)

// keystoreVersion is the sealed-blob format written by seal.
const keystoreVersion = 2

// Bounds on scrypt parameters accepted from disk, so a tampered file cannot
// make unlocking take unbounded memory or time.
const (
	minScryptN = 1 << 14
	maxScryptN = 1 << 20
	maxScryptR = 32
	maxScryptP = 16
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// sealed file has been modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")
)

// kdfParams are the scrypt settings a blob was sealed with.
type kdfParams struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

func defaultKDF() kdfParams { return kdfParams{N: 1 << 15, R: 8, P: 1} }

func (k kdfParams) check() error {
	if k.N < minScryptN || k.N > maxScryptN || k.N&(k.N-1) != 0 ||
		k.R < 1 || k.R > maxScryptR || k.P < 1 || k.P > maxScryptP {
		return fmt.Errorf("keystore: scrypt parameters out of range (N=%d r=%d p=%d)", k.N, k.R, k.P)
	}
	return nil
}

// sealed is the on-disk JSON form. Everything except Cipher is bound to
// the ciphertext as associated data.
type sealed struct {
	V      int       `json:"v"`
	KDF    kdfParams `json:"kdf"`
	Salt   []byte    `json:"salt"`
	Nonce  []byte    `json:"nonce"`
	Cipher []byte    `json:"cipher"`
}

func (s sealed) header() []byte {
	h, _ := json.Marshal(struct {
		V    int       `json:"v"`
		KDF  kdfParams `json:"kdf"`
		Salt []byte    `json:"salt"`
	}{s.V, s.KDF, s.Salt})
	return h
}

// seal encrypts raw under an XChaCha20-Poly1305 key derived from passphrase.
func seal(passphrase string, raw []byte, kdf kdfParams) ([]byte, error) {
	if err := kdf.check(); err != nil {
		return nil, err
	}
	s := sealed{
		V:     keystoreVersion,
		KDF:   kdf,
		Salt:  make([]byte, 16),
		Nonce: make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err := rand.Read(s.Salt); err != nil {
		return nil, err
	}
	if _, err := rand.Read(s.Nonce); err != nil {
		return nil, err
	}

	aead, err := keystoreAEAD(passphrase, s)
	if err != nil {
		return nil, err
	}
	s.Cipher = aead.Seal(nil, s.Nonce, raw, s.header())
	return json.Marshal(s)
}

// open reverses seal.
func open(passphrase string, b []byte) ([]byte, error) {
	var s sealed
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	if s.V != keystoreVersion {
		return nil, fmt.Errorf("keystore: unsupported version %d", s.V)
	}
	if err := s.KDF.check(); err != nil {
		return nil, err
	}
	if len(s.Nonce) != chacha20poly1305.NonceSizeX || len(s.Salt) == 0 {
		return nil, ErrWrongPassphrase
	}

	aead, err := keystoreAEAD(passphrase, s)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, s.Nonce, s.Cipher, s.header())
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func keystoreAEAD(passphrase string, s sealed) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), s.Salt, s.KDF.N, s.KDF.R, s.KDF.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)
	return chacha20poly1305.NewX(key)
}
