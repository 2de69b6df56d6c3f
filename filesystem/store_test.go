package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deaddrop/deaddrop"
	"github.com/deaddrop/deaddrop/filesystem"
)

func newStore(t *testing.T) (*filesystem.Store, string) {
	t.Helper()

	dir := t.TempDir()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	return filesystem.NewStore(root, 0), dir
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	content := []byte("encrypted payload")

	t.Run("round trip", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.Save(ctx, "abc", content))

		got, err := store.Load(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("blob lands on disk with enc suffix", func(t *testing.T) {
		store, dir := newStore(t)

		require.NoError(t, store.Save(ctx, "abc", content))

		data, err := os.ReadFile(filepath.Join(dir, "abc.enc"))
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		store, dir := newStore(t)

		require.NoError(t, store.Save(ctx, "abc", content))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("save overwrites an existing blob", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.Save(ctx, "abc", []byte("old")))
		require.NoError(t, store.Save(ctx, "abc", content))

		got, err := store.Load(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("load of absent blob reports not found", func(t *testing.T) {
		store, _ := newStore(t)

		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, deaddrop.ErrNotFound)
	})

	t.Run("cancelled context is rejected", func(t *testing.T) {
		store, _ := newStore(t)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := store.Save(cancelled, "abc", content)
		assert.Error(t, err)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the blob", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.Save(ctx, "abc", []byte("x")))
		require.NoError(t, store.Delete(ctx, "abc"))

		_, err := store.Load(ctx, "abc")
		assert.ErrorIs(t, err, deaddrop.ErrNotFound)
	})

	t.Run("absent blob is not an error", func(t *testing.T) {
		store, _ := newStore(t)
		assert.NoError(t, store.Delete(ctx, "missing"))
		assert.NoError(t, store.Delete(ctx, "missing"))
	})
}

func TestStore_Exists(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	exists, err := store.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, "abc", []byte("x")))

	exists, err = store.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, exists)
}
