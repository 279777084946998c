package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultLength is the number of random bytes backing a share token.
// 32 bytes gives 256 bits of entropy, comfortably above the 128-bit floor.
const DefaultLength = 32

// New returns a URL-safe random token of DefaultLength bytes.
func New() (string, error) {
	return NewWithLength(DefaultLength)
}

// NewWithLength returns a URL-safe random token backed by n bytes of entropy.
func NewWithLength(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("token length %d below minimum of 16 bytes", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
