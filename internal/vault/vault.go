// Package vault owns the single per-client credential record and mediates
// between plaintext caller input and encrypted storage.
package vault

import (
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/pkg/crypto"
	"github.com/adopt-ai/zapi-go/pkg/providers"
)

// record is one configured credential. At most one lives per Vault; a new
// SetKey replaces it wholesale. The plaintext key is never stored.
type record struct {
	provider     providers.Provider
	encryptedKey string
	modelName    string
}

// Vault holds zero or one encrypted credential for the lifetime of a client
// instance. It is not safe for concurrent use; the owning client serializes
// access. Nothing here is ever persisted to disk.
type Vault struct {
	cipher *crypto.Cipher
	logger *zap.Logger
	rec    *record
}

// New creates a Vault keyed by the organization context.
func New(orgContext string, logger *zap.Logger) (*Vault, error) {
	cipher, err := crypto.NewCipher(orgContext)
	if err != nil {
		return nil, err
	}
	return &Vault{
		cipher: cipher,
		logger: logger.Named("vault"),
	}, nil
}

// SetKey validates, encrypts, and stores a credential, replacing any prior
// record. Passing an empty provider or key clears the record; that is the
// documented way to unset, not an error. On any validation or encryption
// failure the previous record is left untouched.
func (v *Vault) SetKey(provider, apiKey, modelName string) error {
	if provider == "" || apiKey == "" {
		if v.rec != nil {
			v.logger.Info("Clearing configured LLM credential",
				zap.String("provider", string(v.rec.provider)))
		}
		v.rec = nil
		return nil
	}

	canonical, trimmedKey, err := providers.Validate(provider, apiKey)
	if err != nil {
		return err
	}

	blob, err := v.cipher.Encrypt(trimmedKey)
	if err != nil {
		return err
	}

	v.rec = &record{
		provider:     canonical,
		encryptedKey: blob,
		modelName:    modelName,
	}
	v.logger.Info("LLM credential configured",
		zap.String("provider", string(canonical)),
		zap.String("model", modelName))
	return nil
}

// HasKey reports whether a credential is configured.
func (v *Vault) HasKey() bool { return v.rec != nil }

// Provider returns the canonical provider name, or "" if none is configured.
func (v *Vault) Provider() string {
	if v.rec == nil {
		return ""
	}
	return string(v.rec.provider)
}

// ModelName returns the configured model name, or "" if none is configured.
func (v *Vault) ModelName() string {
	if v.rec == nil {
		return ""
	}
	return v.rec.modelName
}

// EncryptedKey returns the stored encrypted blob, or "" if none is configured.
func (v *Vault) EncryptedKey() string {
	if v.rec == nil {
		return ""
	}
	return v.rec.encryptedKey
}

// DecryptedKey transiently exposes the plaintext key. It reports ok=false
// both when no record exists and when decryption fails: this accessor feeds
// display and introspection paths, which must treat a broken blob as
// "credential unavailable" rather than crash the host.
func (v *Vault) DecryptedKey() (key string, ok bool) {
	if v.rec == nil {
		return "", false
	}
	plaintext, err := v.cipher.Decrypt(v.rec.encryptedKey)
	if err != nil {
		v.logger.Warn("Stored LLM credential could not be decrypted",
			zap.String("provider", string(v.rec.provider)),
			zap.Error(err))
		return "", false
	}
	return plaintext, true
}
