package hybrid

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"

	"peerlink/internal/crypto"
	"peerlink/internal/domain"
)

const (
	// Version is the envelope format byte.
	Version byte = 1

	keySize       = chacha20poly1305.KeySize
	boxNonceSize  = 24
	sealedKeySize = keySize + box.Overhead
	bodyNonceSize = chacha20poly1305.NonceSizeX

	headerSize = 1 + boxNonceSize + sealedKeySize
	// MinEnvelopeSize is the size of an envelope carrying an empty body.
	MinEnvelopeSize = headerSize + bodyNonceSize + chacha20poly1305.Overhead
)

// DecryptionError is returned for any envelope that fails to open.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string { return "hybrid: decryption failed: " + e.Reason }

// Encrypt seals plaintext for recipientPub, authenticated as senderPriv.
func Encrypt(
	plaintext []byte,
	senderPriv domain.X25519Private,
	recipientPub domain.X25519Public,
) ([]byte, error) {
	var symKey [keySize]byte
	if _, err := rand.Read(symKey[:]); err != nil {
		return nil, fmt.Errorf("hybrid: generate key: %w", err)
	}
	defer crypto.Wipe(symKey[:])

	var boxNonce [boxNonceSize]byte
	if _, err := rand.Read(boxNonce[:]); err != nil {
		return nil, fmt.Errorf("hybrid: generate nonce: %w", err)
	}

	out := make([]byte, 0, MinEnvelopeSize+len(plaintext))
	out = append(out, Version)
	out = append(out, boxNonce[:]...)
	rpub := [32]byte(recipientPub)
	spriv := [32]byte(senderPriv)
	out = box.Seal(out, symKey[:], &boxNonce, &rpub, &spriv)
	crypto.Wipe(spriv[:])

	aead, err := chacha20poly1305.NewX(symKey[:])
	if err != nil {
		return nil, fmt.Errorf("hybrid: body cipher: %w", err)
	}
	header := out[:headerSize]
	bodyNonce := make([]byte, bodyNonceSize)
	if _, err := rand.Read(bodyNonce); err != nil {
		return nil, fmt.Errorf("hybrid: generate nonce: %w", err)
	}
	out = append(out, bodyNonce...)
	return aead.Seal(out, bodyNonce, plaintext, header), nil
}

// Decrypt opens an envelope produced by Encrypt. recipientPriv is the local
// key; senderPub is the claimed sender's published key.
func Decrypt(
	envelope []byte,
	recipientPriv domain.X25519Private,
	senderPub domain.X25519Public,
) ([]byte, error) {
	if len(envelope) < MinEnvelopeSize {
		return nil, &DecryptionError{Reason: "envelope too short"}
	}
	if envelope[0] != Version {
		return nil, &DecryptionError{Reason: fmt.Sprintf("unsupported version %d", envelope[0])}
	}

	var boxNonce [boxNonceSize]byte
	copy(boxNonce[:], envelope[1:1+boxNonceSize])
	sealed := envelope[1+boxNonceSize : headerSize]

	spub := [32]byte(senderPub)
	rpriv := [32]byte(recipientPriv)
	symKey, ok := box.Open(nil, sealed, &boxNonce, &spub, &rpriv)
	crypto.Wipe(rpriv[:])
	if !ok {
		return nil, &DecryptionError{Reason: "key unwrap failed"}
	}
	defer crypto.Wipe(symKey)

	aead, err := chacha20poly1305.NewX(symKey)
	if err != nil {
		return nil, &DecryptionError{Reason: err.Error()}
	}
	bodyNonce := envelope[headerSize : headerSize+bodyNonceSize]
	plaintext, err := aead.Open(nil, bodyNonce, envelope[headerSize+bodyNonceSize:], envelope[:headerSize])
	if err != nil {
		return nil, &DecryptionError{Reason: "body authentication failed"}
	}
	return plaintext, nil
}
