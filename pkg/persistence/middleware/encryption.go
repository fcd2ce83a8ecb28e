package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// sealedPrefix marks a field value produced by this middleware.
const sealedPrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 (standard encoding) AES-256 key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals the personal fields
// of a session (service address and customer name, including the booking
// copies) with AES-256-GCM. Stage, selections and timestamps stay readable so
// operators can still inspect where a conversation is.
//
// Values stored without the sealed prefix are returned as-is, which lets
// encryption be enabled on a store that already holds plain sessions.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, key string, session *domain.Session) error {
	sealed := session.Clone()
	err := m.each(sealed, func(v string) (string, error) {
		if v == "" {
			return v, nil
		}
		ct, err := encrypt([]byte(v), m.config.ActiveKey)
		if err != nil {
			return "", err
		}
		return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
	})
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}
	return m.next.Save(ctx, key, sealed)
}

func (m *encryptionMiddleware) Load(ctx context.Context, key string) (*domain.Session, error) {
	session, err := m.next.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	opened := session.Clone()
	err = m.each(opened, func(v string) (string, error) {
		encoded, ok := strings.CutPrefix(v, sealedPrefix)
		if !ok {
			return v, nil
		}
		ct, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("failed to decode ciphertext base64: %w", err)
		}
		plain, err := decryptWithRotation(ct, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return "", err
		}
		return string(plain), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}
	return opened, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// each rewrites every personal field of s in place.
func (m *encryptionMiddleware) each(s *domain.Session, fn func(string) (string, error)) error {
	fields := []*string{&s.ServiceAddress, &s.CustomerName}
	if s.Booking != nil {
		fields = append(fields, &s.Booking.Address, &s.Booking.CustomerName)
	}
	for _, f := range fields {
		v, err := fn(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
