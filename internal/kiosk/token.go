package kiosk

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// tokenBytes is the entropy of a kiosk secret before hex encoding.
const tokenBytes = 32

// HashToken returns the lowercase hex SHA-256 digest of secret. Only digests
// are persisted.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// GenerateToken returns a fresh 64-character hex secret read from r.
func GenerateToken(r io.Reader) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func generateToken() (string, error) {
	return GenerateToken(rand.Reader)
}
