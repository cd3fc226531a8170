package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCipher(t *testing.T) {
	t.Run("rejects empty context", func(t *testing.T) {
		_, err := NewCipher("")
		assert.ErrorIs(t, err, ErrEmptyContext)

		_, err = NewCipher("   ")
		assert.ErrorIs(t, err, ErrEmptyContext)
	})

	t.Run("trims the context", func(t *testing.T) {
		c, err := NewCipher("  org-123  ")
		require.NoError(t, err)
		assert.Equal(t, "org-123", c.Context())
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	plaintexts := []string{
		"sk-ant-REDACTED",
		"x",
		strings.Repeat("long-secret-", 100),
		"unicode: ключ 鍵 🔑",
	}
	for _, pt := range plaintexts {
		blob, err := c.Encrypt(pt)
		require.NoError(t, err)
		assert.NotContains(t, blob, pt)

		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	a, err := c.Encrypt("same secret")
	require.NoError(t, err)
	b, err := c.Encrypt("same secret")
	require.NoError(t, err)

	// Fresh salt and nonce per call.
	assert.NotEqual(t, a, b)
}

func TestEncryptRejectsEmptyPlaintext(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	_, err = c.Encrypt("")
	var encErr *EncryptionError
	require.ErrorAs(t, err, &encErr)
	assert.ErrorIs(t, err, ErrEmptyPlaintext)
}

func TestDecryptCrossTenantFails(t *testing.T) {
	orgA, err := NewCipher("org-aaa")
	require.NoError(t, err)
	orgB, err := NewCipher("org-bbb")
	require.NoError(t, err)

	blob, err := orgA.Encrypt("tenant isolated secret")
	require.NoError(t, err)

	_, err = orgB.Decrypt(blob)
	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, FailureAuth, decErr.Failure)
}

func TestDecryptRejectsTampering(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	blob, err := c.Encrypt("a secret worth protecting")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	// Flipping any single byte, in the salt, nonce, ciphertext, or tag,
	// must fail authentication.
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		_, err := c.Decrypt(base64.StdEncoding.EncodeToString(mutated))
		var decErr *DecryptionError
		require.ErrorAs(t, err, &decErr, "byte %d", i)
		assert.Equal(t, FailureAuth, decErr.Failure, "byte %d", i)
	}
}

func TestDecryptRejectsMalformedBlobs(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	cases := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not base64", "!!!not-base64!!!"},
		{"too short", base64.StdEncoding.EncodeToString(make([]byte, minBlobSize-1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Decrypt(tc.blob)
			var decErr *DecryptionError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, FailureMalformed, decErr.Failure)
		})
	}
}

func TestDecryptTruncatedBlobFailsAuth(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	blob, err := c.Encrypt("a somewhat longer secret so truncation stays above the minimum")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	require.Greater(t, len(raw), minBlobSize)

	truncated := base64.StdEncoding.EncodeToString(raw[:len(raw)-4])
	_, err = c.Decrypt(truncated)
	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, FailureAuth, decErr.Failure)
}

func TestBlobLayout(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	pt := "layout-check"
	blob, err := c.Encrypt(pt)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	assert.Equal(t, SaltSize+NonceSize+len(pt)+TagSize, len(raw))
}

func TestDecryptErrorUnwraps(t *testing.T) {
	c, err := NewCipher("org-abc-123")
	require.NoError(t, err)

	_, err = c.Decrypt("@@@@")
	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	assert.Error(t, errors.Unwrap(decErr))
}
