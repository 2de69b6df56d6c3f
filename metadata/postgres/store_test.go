package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deaddrop/deaddrop"
	"github.com/deaddrop/deaddrop/metadata/postgres"
)

func TestNewStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := getSharedTestDatabase(t)

	_, err := postgres.NewStore(pool, "files; drop table users")
	assert.Error(t, err)
}

func TestStore_SaveGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	rec := deaddrop.FileRecord{Filename: "a.bin", Size: 10, MaxDownloads: 2, CreatedAt: time.Now().UTC()}

	t.Run("round trip", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))

		got, err := store.Get(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, rec.Filename, got.Filename)
		assert.Equal(t, rec.Size, got.Size)
		assert.Equal(t, rec.MaxDownloads, got.MaxDownloads)
		assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("missing row reports not found", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, deaddrop.ErrNotFound)
	})

	t.Run("row past its deadline reports not found", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Millisecond))
		time.Sleep(50 * time.Millisecond)

		_, err := store.Get(ctx, "id")
		assert.ErrorIs(t, err, deaddrop.ErrNotFound)
	})

	t.Run("save upserts an existing row", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))

		updated := rec
		updated.Filename = "b.bin"
		require.NoError(t, store.Save(ctx, "id", updated, time.Minute))

		got, err := store.Get(ctx, "id")
		require.NoError(t, err)
		assert.Equal(t, "b.bin", got.Filename)
	})
}

func TestStore_Increment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	rec := deaddrop.FileRecord{Filename: "a.bin", MaxDownloads: 2, CreatedAt: time.Now().UTC()}

	t.Run("counts up to the limit then stops", func(t *testing.T) {
		store := newTestStore(t)
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

	t.Run("absent row reports expired", func(t *testing.T) {
		store := newTestStore(t)

		res, err := store.Increment(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, deaddrop.IncrementExpired, res.Status)
	})

	t.Run("deadline is preserved across increments", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Save(ctx, "id", rec, time.Minute))

		before, err := store.TTL(ctx, "id")
		require.NoError(t, err)

		_, err = store.Increment(ctx, "id")
		require.NoError(t, err)

		after, err := store.TTL(ctx, "id")
		require.NoError(t, err)
		assert.InDelta(t, before.Seconds(), after.Seconds(), 2)
	})

	t.Run("concurrent increments admit exactly the limit", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Save(ctx, "id", deaddrop.FileRecord{Filename: "a", MaxDownloads: 1, CreatedAt: time.Now()}, time.Minute))

		const racers = 8
		results := make(chan deaddrop.IncrementStatus, racers)
		for range racers {
			go func() {
				res, err := store.Increment(ctx, "id")
				if err != nil {
					results <- deaddrop.IncrementExpired
					return
				}
				results <- res.Status
			}()
		}

		ok := 0
		for range racers {
			if <-results == deaddrop.IncrementOK {
				ok++
			}
		}
		assert.Equal(t, 1, ok, "exactly one increment should win")
	})
}

func TestStore_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, "id", deaddrop.FileRecord{Filename: "a", MaxDownloads: 1, CreatedAt: time.Now()}, time.Minute))
	require.NoError(t, store.Delete(ctx, "id"))

	_, err := store.Get(ctx, "id")
	assert.ErrorIs(t, err, deaddrop.ErrNotFound)

	// Absent delete is not an error.
	assert.NoError(t, store.Delete(ctx, "id"))
}

func TestStore_TTL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.TTL(ctx, "missing")
	assert.ErrorIs(t, err, deaddrop.ErrNotFound)

	require.NoError(t, store.Save(ctx, "id", deaddrop.FileRecord{Filename: "a", MaxDownloads: 1, CreatedAt: time.Now()}, time.Minute))

	ttl, err := store.TTL(ctx, "id")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}

func TestStore_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
