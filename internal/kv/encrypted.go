package kv

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/quantumlife/hearth/internal/core"
)

// Reserved keys in the wrapped store.
const (
	saltKey  = "_hearth_kdf_salt"
	checkKey = "_hearth_kdf_check"
)

const checkPlaintext = "hearth"

// Encrypted seals values with XChaCha20-Poly1305 under a key derived from a
// passphrase with Argon2id. Keys are stored in clear and bound to their
// value as associated data.
type Encrypted struct {
	inner Store
	aead  cipher.AEAD
}

// NewEncrypted derives the key, creating the salt on first use. A passphrase
// that does not match the one the store was created with fails with
// core.ErrDecryptFailed.
func NewEncrypted(ctx context.Context, inner Store, passphrase string) (*Encrypted, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: passphrase", core.ErrMissingRequired)
	}

	salt, fresh, err := loadSalt(ctx, inner)
	if err != nil {
		return nil, err
	}

	key := argon2.IDKey([]byte(passphrase), salt, 3, 64*1024, 4, 32)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	e := &Encrypted{inner: inner, aead: aead}

	if fresh {
		if err := e.Set(ctx, checkKey, checkPlaintext); err != nil {
			return nil, err
		}
		return e, nil
	}
	got, err := e.Get(ctx, checkKey)
	if err != nil || got != checkPlaintext {
		return nil, fmt.Errorf("%w: wrong passphrase?", core.ErrDecryptFailed)
	}
	return e, nil
}

func loadSalt(ctx context.Context, inner Store) ([]byte, bool, error) {
	encoded, err := inner.Get(ctx, saltKey)
	if err == nil {
		salt, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode salt: %w", err)
		}
		return salt, false, nil
	}
	if !errors.Is(err, core.ErrKeyNotFound) {
		return nil, false, err
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, false, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := inner.Set(ctx, saltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, false, err
	}
	return salt, true, nil
}

func (e *Encrypted) Get(ctx context.Context, key string) (string, error) {
	encoded, err := e.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", core.ErrDecryptFailed, key, err)
	}
	if len(sealed) < e.aead.NonceSize() {
		return "", fmt.Errorf("%w: %s: short ciphertext", core.ErrDecryptFailed, key)
	}
	nonce, ciphertext := sealed[:e.aead.NonceSize()], sealed[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrDecryptFailed, key)
	}
	return string(plain), nil
}

func (e *Encrypted) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return e.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

// Unwrap returns the wrapped store.
func (e *Encrypted) Unwrap() Store {
	return e.inner
}

// Close closes the wrapped store.
func (e *Encrypted) Close() error {
	return Close(e.inner)
}
