package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	for _, key := range []string{
		strings.Repeat("a", 64), // 64 hex chars, decoded as a 32-byte hex key
		strings.Repeat("k", 32), // raw 32 bytes
		"short-passphrase",      // hashed via SHA-256
	} {
		c, err := NewCipher(key)
		require.NoError(t, err)

		for _, plaintext := range []string{"", "hello world", `{"token":"abc123"}`} {
			envelope, err := c.EncryptString(plaintext)
			require.NoError(t, err)
			assert.Equal(t, 2, strings.Count(envelope, ":"))

			decrypted, err := c.DecryptString(envelope)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		}
	}
}

func TestCipher_TamperedCiphertextFails(t *testing.T) {
	c, err := NewCipher("a-passphrase-of-any-length")
	require.NoError(t, err)

	envelope, err := c.EncryptString("secret value")
	require.NoError(t, err)

	parts := strings.Split(envelope, ":")
	require.Len(t, parts, 3)

	tests := map[string]string{
		"iv":         strings.Join([]string{flip(parts[0]), parts[1], parts[2]}, ":"),
		"tag":        strings.Join([]string{parts[0], flip(parts[1]), parts[2]}, ":"),
		"ciphertext": strings.Join([]string{parts[0], parts[1], flip(parts[2])}, ":"),
	}

	for name, tampered := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.DecryptString(tampered)
			assert.ErrorIs(t, err, ErrInvalidCiphertext)
		})
	}
}

func TestCipher_EnvelopeSegmentSizes(t *testing.T) {
	c, err := NewCipher("a-passphrase-of-any-length")
	require.NoError(t, err)

	envelope, err := c.EncryptString("secret value")
	require.NoError(t, err)

	parts := strings.Split(envelope, ":")
	require.Len(t, parts, 3)

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, iv, 16)

	tag, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Len(t, tag, 16)
}

func TestCipher_MalformedEnvelope(t *testing.T) {
	c, err := NewCipher("a-passphrase-of-any-length")
	require.NoError(t, err)

	_, err = c.DecryptString("not-a-valid-envelope")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

// flip mutates the first decodable base64 character so the segment decodes
// to a different byte string without changing its length.
func flip(segment string) string {
	b := []byte(segment)
	for i := 0; i < len(b); i++ {
		if b[i] != 'A' {
			b[i] = 'A'
			return string(b)
		}
		b[i] = 'B'
		return string(b)
	}
	return segment
}
