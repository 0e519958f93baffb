// Package crypto encrypts credential bodies at rest with AES-256-GCM,
// using a random 16-byte IV and serializing the result as
// "iv:authTag:ciphertext" with each segment base64-encoded.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidCiphertext is returned when a stored credential's "iv:authTag:ciphertext"
// envelope is malformed or has been tampered with.
var ErrInvalidCiphertext = errors.New("failed to decrypt data")

const (
	keySize = 32 // AES-256
	ivSize  = 16 // stored in full in the envelope's first segment
)

// Cipher encrypts and decrypts credential payloads with a single 32-byte key.
type Cipher struct {
	key []byte
}

// NewCipher derives a 32-byte AES key from raw, accepting the four encodings
// accepted forms: 64-char hex, 44-char base64, 32 raw bytes, or (as a
// fallback for any other length) the SHA-256 hash of raw.
func NewCipher(raw string) (*Cipher, error) {
	key, err := deriveKey(raw)
	if err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

func deriveKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, errors.New("encryption key must not be empty")
	}

	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == keySize {
			return decoded, nil
		}
	}

	if len(raw) == 44 {
		if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == keySize {
			return decoded, nil
		}
	}

	if len(raw) == keySize {
		return []byte(raw), nil
	}

	sum := sha256.Sum256([]byte(raw))
	return sum[:], nil
}

// Encrypt seals plaintext under a fresh random 16-byte IV and returns the
// "iv:authTag:ciphertext" envelope, each segment base64-encoded.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens an "iv:authTag:ciphertext" envelope produced by Encrypt.
// Any tampering with the IV, tag, or ciphertext yields ErrInvalidCiphertext.
func (c *Cipher) Decrypt(envelope string) ([]byte, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return nil, ErrInvalidCiphertext
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	if len(iv) != ivSize {
		return nil, ErrInvalidCiphertext
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	if len(tag) != gcm.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}

// EncryptString is a convenience wrapper for string payloads.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	return c.Encrypt([]byte(plaintext))
}

// DecryptString is a convenience wrapper for string payloads.
func (c *Cipher) DecryptString(envelope string) (string, error) {
	data, err := c.Decrypt(envelope)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
