package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrCiphertext is returned when a sealed value cannot be opened, either
// because it is truncated or because authentication failed.
var ErrCiphertext = errors.New("cryptox: invalid ciphertext")

// IDCipher seals short identifiers with AES-256-GCM. The output format is
// [12-byte nonce][encrypted data][16-byte auth tag].
type IDCipher struct {
	aead cipher.AEAD
}

// NewIDCipher derives a 32-byte AES-256 key from the given key material
// using SHA-256 and prepares a GCM instance.
func NewIDCipher(keyMaterial []byte) (*IDCipher, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty key material")
	}

	key := sha256.Sum256(keyMaterial)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &IDCipher{aead: gcm}, nil
}

// Seal encrypts and authenticates plaintext with a fresh random nonce.
func (c *IDCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (c *IDCipher) Open(sealed []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return nil, ErrCiphertext
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCiphertext
	}

	return plaintext, nil
}

// LoadKeyMaterial reads key material for an IDCipher from, in order:
//  1. the file at path (if set)
//  2. the named environment variable (if set)
//  3. a random ephemeral key (development only; tokens do not survive a restart)
//
// The boolean reports whether the ephemeral fallback was used.
func LoadKeyMaterial(path, envVar string) ([]byte, bool, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read key file: %w", err)
		}
		return data, false, nil
	}

	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return []byte(v), false, nil
		}
	}

	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, false, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	return material, true, nil
}
