package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

// ErrMalformed is returned by Open for values not in iv:tag:ciphertext form.
var ErrMalformed = errors.New("invalid encrypted data format")

// Cipher seals vault content with AES-256-GCM under a per-household key
// derived from a master key with HKDF-SHA256. A Cipher without a master key
// passes content through unchanged.
type Cipher struct {
	master []byte
}

// NewCipher decodes a base64 master key. An empty key disables encryption.
func NewCipher(encodedKey string) (*Cipher, error) {
	if encodedKey == "" {
		return &Cipher{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keySize, len(key))
	}
	return &Cipher{master: key}, nil
}

// Enabled reports whether a master key is configured.
func (c *Cipher) Enabled() bool {
	return len(c.master) > 0
}

func (c *Cipher) householdKey(householdID int64) ([]byte, error) {
	info := []byte("hearth vault household " + strconv.FormatInt(householdID, 10))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.master, nil, info), key); err != nil {
		return nil, fmt.Errorf("derive household key: %w", err)
	}
	return key, nil
}

func (c *Cipher) gcm(householdID int64) (cipher.AEAD, error) {
	key, err := c.householdKey(householdID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext for householdID.
// Output format: base64(iv):base64(tag):base64(ciphertext)
func (c *Cipher) Seal(householdID int64, plaintext string) (string, error) {
	if !c.Enabled() || plaintext == "" {
		return plaintext, nil
	}
	gcm, err := c.gcm(householdID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return enc.EncodeToString(nonce) + ":" + enc.EncodeToString(tag) + ":" + enc.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal. Values that were stored before a
// key was configured are returned unchanged.
func (c *Cipher) Open(householdID int64, value string) (string, error) {
	if !c.Enabled() || !IsSealed(value) {
		return value, nil
	}
	parts := strings.Split(value, ":")
	enc := base64.StdEncoding
	nonce, _ := enc.DecodeString(parts[0])
	tag, _ := enc.DecodeString(parts[1])
	ciphertext, _ := enc.DecodeString(parts[2])
	if len(nonce) != nonceSize || len(tag) != tagSize {
		return "", ErrMalformed
	}

	gcm, err := c.gcm(householdID)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether value has the three base64 parts Seal produces.
func IsSealed(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if _, err := base64.StdEncoding.DecodeString(p); err != nil {
			return false
		}
	}
	return true
}
