// Package crypto seals upstream API credentials for storage in configuration
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidKey is returned when the key is not a valid AES key length
	ErrInvalidKey = errors.New("invalid encryption key: must be 16, 24, or 32 bytes")

	// ErrInvalidCiphertext is returned when the sealed value is malformed
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned when authentication of the sealed value fails
	ErrDecryptionFailed = errors.New("decryption failed: authentication failed")
)

// Cipher seals and opens credential strings with AES-GCM. A sealed value is
// the random nonce prepended to the ciphertext, base64-encoded.
type Cipher struct {
	gcm   cipher.AEAD
	keyID string
}

// NewCipher creates a Cipher from a raw key.
// Key must be 16 (AES-128), 24 (AES-192), or 32 (AES-256) bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	// Key ID from the key hash (first 8 bytes), for rotation tracking
	keyHash := sha256.Sum256(key)
	keyID := base64.RawURLEncoding.EncodeToString(keyHash[:8])

	return &Cipher{gcm: gcm, keyID: keyID}, nil
}

// NewCipherFromString creates a Cipher from a base64-encoded key
func NewCipherFromString(encodedKey string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return NewCipher(key)
}

// Seal encrypts a credential and returns the base64-encoded sealed value
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a base64-encoded sealed value and returns the credential
func (c *Cipher) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	// Minimum length: nonce + at least 1 byte + auth tag
	nonceSize := c.gcm.NonceSize()
	if len(ciphertext) < nonceSize+c.gcm.Overhead()+1 {
		return "", ErrInvalidCiphertext
	}

	nonce := ciphertext[:nonceSize]
	encrypted := ciphertext[nonceSize:]

	plaintext, err := c.gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// KeyID returns the identifier for this key, for rotation tracking
func (c *Cipher) KeyID() string {
	return c.keyID
}

// GenerateKey generates a random key of the specified size.
// Size should be 16, 24, or 32 bytes.
func GenerateKey(size int) ([]byte, error) {
	if size != 16 && size != 24 && size != 32 {
		return nil, ErrInvalidKey
	}

	key := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return key, nil
}

// GenerateKeyString generates a random key and returns it as base64
func GenerateKeyString(size int) (string, error) {
	key, err := GenerateKey(size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
