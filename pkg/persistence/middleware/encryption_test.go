package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sight/pkg/adapters/memory"
	"github.com/aretw0/sight/pkg/persistence/middleware"
	"github.com/aretw0/sight/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.PreferenceStore, active []byte, fallback ...[]byte) ports.PreferenceStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := encrypted(t, underlying, generateKey(t))

	require.NoError(t, store.Save(ctx, "viewer/threshold", map[string]any{"level": 42.0, "name": "bone"}))

	raw, err := underlying.Load(ctx, "viewer/threshold")
	require.NoError(t, err)
	require.IsType(t, "", raw)
	assert.NotContains(t, raw, "bone")

	loaded, err := store.Load(ctx, "viewer/threshold")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": 42.0, "name": "bone"}, loaded)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer/threshold"}, keys)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	require.NoError(t, encrypted(t, underlying, oldKey).Save(ctx, "k", "old"))

	rotated := encrypted(t, underlying, newKey, oldKey)
	loaded, err := rotated.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "old", loaded)

	_, err = encrypted(t, underlying, newKey).Load(ctx, "k")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, "plain", "value"))
	store := encrypted(t, underlying, generateKey(t))

	_, err = store.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrPreferenceNotFound)

	require.NoError(t, store.Save(ctx, "gone", 1))
	require.NoError(t, store.Delete(ctx, "gone"))
	_, err = store.Load(ctx, "gone")
	assert.ErrorIs(t, err, ports.ErrPreferenceNotFound)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunPreferenceStoreContract(t, encrypted(t, memory.NewStore(), generateKey(t)))
}
