package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deaddrop/deaddrop"
	"github.com/deaddrop/deaddrop/metadata/redis"
)

func newStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewStore(client, ""), mr
}

func TestStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	rec := deaddrop.FileRecord{Filename: "a.bin", Size: 10, MaxDownloads: 2, CreatedAt: time.Now().UTC()}

	t.Run("round trip", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))

		got, err := store.Get(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, rec.Filename, got.Filename)
		assert.Equal(t, rec.Size, got.Size)
		assert.Equal(t, rec.MaxDownloads, got.MaxDownloads)
		assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("keys carry the namespace", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))
		assert.True(t, mr.Exists("file:id"))
	})

	t.Run("missing key reports not found", func(t *testing.T) {
		store, _ := newStore(t)
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, deaddrop.ErrNotFound)
	})

	t.Run("expired key reports not found", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))

		mr.FastForward(2 * time.Minute)

		_, err := store.Get(ctx, "id")
		assert.ErrorIs(t, err, deaddrop.ErrNotFound)
	})
}

func TestStore_Increment(t *testing.T) {
	ctx := context.Background()
	rec := deaddrop.FileRecord{Filename: "a.bin", MaxDownloads: 2, CreatedAt: time.Now().UTC()}

	t.Run("counts up to the limit then stops", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))

		res, err := store.Increment(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, deaddrop.IncrementOK, res.Status)
		assert.Equal(t, 1, res.Downloads)

		res, err = store.Increment(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, deaddrop.IncrementOK, res.Status)
		assert.Equal(t, 2, res.Downloads)

		res, err = store.Increment(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, deaddrop.IncrementLimitReached, res.Status)
		assert.Equal(t, 2, res.Downloads)
	})

	t.Run("absent key reports expired", func(t *testing.T) {
		store, _ := newStore(t)

		res, err := store.Increment(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, deaddrop.IncrementExpired, res.Status)
	})

	t.Run("expired key reports expired", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))
		mr.FastForward(2 * time.Minute)

		res, err := store.Increment(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, deaddrop.IncrementExpired, res.Status)
	})

	t.Run("ttl is preserved across increments", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, 10*time.Minute))

		mr.FastForward(4 * time.Minute)

		_, err := store.Increment(ctx, "id")
		require.NoError(t, err)

		ttl, err := store.TTL(ctx, "id")
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, 6*time.Minute)
		assert.Greater(t, ttl, 5*time.Minute)
	})

	t.Run("increment persists the new count", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))

		_, err := store.Increment(ctx, "id")
		require.NoError(t, err)

		got, err := store.Get(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Downloads)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.Save(ctx, "id", deaddrop.FileRecord{Filename: "a", MaxDownloads: 1}, time.Minute))
	require.NoError(t, store.Delete(ctx, "id"))

	_, err := store.Get(ctx, "id")
	assert.ErrorIs(t, err, deaddrop.ErrNotFound)

	// Absent delete is not an error.
	assert.NoError(t, store.Delete(ctx, "id"))
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	_, err := store.TTL(ctx, "missing")
	assert.ErrorIs(t, err, deaddrop.ErrNotFound)

	require.NoError(t, store.Save(ctx, "id", deaddrop.FileRecord{Filename: "a", MaxDownloads: 1}, time.Minute))

	ttl, err := store.TTL(ctx, "id")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}

func TestStore_Ping(t *testing.T) {
	store, mr := newStore(t)
	assert.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
