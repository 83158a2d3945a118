package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/sight/pkg/ports"
)

// envelopePrefix marks the preference values written by the encryption middleware.
const envelopePrefix = "enc:v1:"

// ErrNotEncrypted is returned by Load when the stored value is not an encrypted envelope.
var ErrNotEncrypted = errors.New("preference is not encrypted")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new values. Must be 32 bytes (AES-256).
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt a value,
	// so that keys can be rotated without losing stored preferences.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.PreferenceStore
	config EncryptionConfig
}

// NewEncryptionMiddleware returns a middleware that stores every preference value as an
// AES-GCM sealed string. Keys are left in clear so that List still works.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes, got %d", len(config.ActiveKey))
	}
	return func(next ports.PreferenceStore) ports.PreferenceStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, key string, value any) error {
	plain, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal preference %s: %w", key, err)
	}
	sealed, err := encrypt(plain, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt preference %s: %w", key, err)
	}
	return m.next.Save(ctx, key, envelopePrefix+base64.StdEncoding.EncodeToString(sealed))
}

func (m *encryptionMiddleware) Load(ctx context.Context, key string) (any, error) {
	stored, err := m.next.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s, _ := stored.(string)
	encoded, ok := strings.CutPrefix(s, envelopePrefix)
	if !ok {
		return nil, fmt.Errorf("preference %s: %w", key, ErrNotEncrypted)
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode preference %s: %w", key, err)
	}
	plain, err := decryptWithRotation(sealed, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt preference %s: %w", key, err)
	}
	var value any
	if err := json.Unmarshal(plain, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preference %s: %w", key, err)
	}
	return value, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
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

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
