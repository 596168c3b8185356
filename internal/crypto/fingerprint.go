package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a short hex fingerprint over one or more public keys,
// grouped in blocks of four characters for reading aloud.
//
// It hashes the concatenated keys with SHA-256 and truncates to 10 bytes.
func Fingerprint(keys ...[]byte) string {
	h := sha256.New()
	for _, k := range keys {
		h.Write(k)
	}
	raw := hex.EncodeToString(h.Sum(nil)[:10])

	var b strings.Builder
	for i := 0; i < len(raw); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(raw[i : i+4])
	}
	return b.String()
}
