package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPreferenceStoreContract runs a suite of tests to verify that a PreferenceStore
// implementation adheres to the defined interface contract.
func RunPreferenceStoreContract(t *testing.T, store PreferenceStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, "bar"))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "bar", loaded)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, true))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, true, loaded)
	})

	t.Run("Numbers", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, 0.5))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		// JSON backed stores widen numbers to float64
		assert.EqualValues(t, 0.5, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, ErrPreferenceNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, "gone"))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, ErrPreferenceNotFound, "Load after Delete should return ErrPreferenceNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Delete of an absent key")
	})

	t.Run("List", func(t *testing.T) {
		k1, k2 := key+"-1", key+"-2"
		require.NoError(t, store.Save(ctx, k1, "a"))
		require.NoError(t, store.Save(ctx, k2, "b"))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
