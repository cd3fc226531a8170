// Package crypto implements authenticated encryption of a single secret
// string under a per-tenant context (the organization id).
//
// The wire format is base64(salt || nonce || ciphertext || tag). A blob
// encrypted under one org context fails authentication when decrypted under
// another; that is the tenant-isolation property, not an error in the caller.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is 32 bytes for AES-256.
	KeySize = 32
	// SaltSize is the random per-blob key-derivation salt length.
	SaltSize = 16
	// NonceSize is the GCM standard 96-bit nonce length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
	// Iterations is the PBKDF2 work factor.
	Iterations = 100_000

	// minBlobSize is the smallest decodable blob: salt, nonce, tag and at
	// least one ciphertext byte.
	minBlobSize = SaltSize + NonceSize + TagSize + 1
)

var (
	// ErrEmptyContext is returned when the org context is empty or blank.
	ErrEmptyContext = errors.New("encryption context cannot be empty")
	// ErrEmptyPlaintext is returned when there is nothing to encrypt.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")
)

// EncryptionError reports a failure while producing an encrypted blob.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failed: %v", e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// DecryptFailure distinguishes the two ways a blob can be rejected.
type DecryptFailure int

const (
	// FailureMalformed means the blob could not even be parsed: invalid
	// base64 or a decoded length below the fixed minimum.
	FailureMalformed DecryptFailure = iota
	// FailureAuth means the AEAD tag did not verify: wrong context,
	// corrupted ciphertext, or a truncated blob.
	FailureAuth
)

// DecryptionError reports a rejected blob.
type DecryptionError struct {
	Failure DecryptFailure
	Err     error
}

func (e *DecryptionError) Error() string {
	switch e.Failure {
	case FailureMalformed:
		return fmt.Sprintf("decryption failed: malformed blob: %v", e.Err)
	default:
		return fmt.Sprintf("decryption failed: authentication error: %v", e.Err)
	}
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Cipher encrypts and decrypts a secret under one org context.
type Cipher struct {
	context    string
	iterations int
}

// NewCipher creates a Cipher bound to the given org context.
func NewCipher(orgContext string) (*Cipher, error) {
	trimmed := strings.TrimSpace(orgContext)
	if trimmed == "" {
		return nil, ErrEmptyContext
	}
	return &Cipher{context: trimmed, iterations: Iterations}, nil
}

// Context returns the trimmed org context the cipher was built with.
func (c *Cipher) Context() string { return c.context }

// deriveKey stretches the org context into a 256-bit key. Deterministic for
// a given (context, salt) pair; callers must wipe the result.
func (c *Cipher) deriveKey(salt []byte) *secretBuffer {
	key := pbkdf2.Key([]byte(c.context), salt, c.iterations, KeySize, sha256.New)
	return newSecretBuffer(key)
}

// Encrypt seals the plaintext under a freshly derived key. Both the salt and
// the nonce are random per call; a nonce is never reused under the same key.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", &EncryptionError{Err: ErrEmptyPlaintext}
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", &EncryptionError{Err: fmt.Errorf("generate salt: %w", err)}
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", &EncryptionError{Err: fmt.Errorf("generate nonce: %w", err)}
	}

	key := c.deriveKey(salt)
	defer key.Wipe()

	buf := newSecretBuffer([]byte(plaintext))
	defer buf.Wipe()

	aead, err := newGCM(key.Bytes())
	if err != nil {
		return "", &EncryptionError{Err: err}
	}

	// Seal appends ciphertext+tag; lay out salt || nonce || ct || tag.
	out := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+TagSize)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, buf.Bytes(), nil)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt under the same org context.
func (c *Cipher) Decrypt(blob string) (string, error) {
	if strings.TrimSpace(blob) == "" {
		return "", &DecryptionError{Failure: FailureMalformed, Err: errors.New("blob is empty")}
	}

	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", &DecryptionError{Failure: FailureMalformed, Err: fmt.Errorf("invalid base64: %w", err)}
	}
	if len(data) < minBlobSize {
		return "", &DecryptionError{
			Failure: FailureMalformed,
			Err:     fmt.Errorf("blob is %d bytes, minimum is %d", len(data), minBlobSize),
		}
	}

	salt := data[:SaltSize]
	nonce := data[SaltSize : SaltSize+NonceSize]
	sealed := data[SaltSize+NonceSize:] // ciphertext || tag

	key := c.deriveKey(salt)
	defer key.Wipe()

	aead, err := newGCM(key.Bytes())
	if err != nil {
		return "", &DecryptionError{Failure: FailureAuth, Err: err}
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Failure: FailureAuth, Err: err}
	}

	buf := newSecretBuffer(plaintext)
	// string() copies; the working buffer is wiped before returning.
	out := string(buf.Bytes())
	buf.Wipe()
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}
