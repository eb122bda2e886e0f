// Package sha256 derives stable content keys for records.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keyLength is the number of hex characters kept by Key.
const keyLength = 16

// Hasher produces SHA-256 digests and short keys.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Key returns a short stable key for parts. Parts are joined with a NUL so
// ("ab", "c") and ("a", "bc") differ.
func (h *Hasher) Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])[:keyLength]
}
