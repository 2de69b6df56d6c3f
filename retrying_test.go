package deaddrop_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deaddrop/deaddrop"
	"github.com/deaddrop/deaddrop/retry"
)

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", deaddrop.ErrUnavailable, true},
		{"timeout", deaddrop.ErrTimeout, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped unavailable", fmt.Errorf("get record: %w: %w", deaddrop.ErrUnavailable, errors.New("refused")), true},
		{"not found", deaddrop.ErrNotFound, false},
		{"plain error", errors.New("corrupt payload"), false},
		{"nil is a no-op", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deaddrop.Transient(tt.err))
		})
	}
}

// flakyStore fails each operation a fixed number of times before succeeding.
type flakyStore struct {
	failures int
	calls    int
	err      error
}

func (f *flakyStore) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) Save(ctx context.Context, id string, rec deaddrop.FileRecord, ttl time.Duration) error {
	return f.attempt()
}

func (f *flakyStore) Get(ctx context.Context, id string) (deaddrop.FileRecord, error) {
	return deaddrop.FileRecord{Filename: "a"}, f.attempt()
}

func (f *flakyStore) Increment(ctx context.Context, id string) (deaddrop.IncrementResult, error) {
	return deaddrop.IncrementResult{Status: deaddrop.IncrementOK, Downloads: 1}, f.attempt()
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	return f.attempt()
}

func (f *flakyStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	return time.Minute, f.attempt()
}

func (f *flakyStore) Ping(ctx context.Context) error {
	return f.attempt()
}

func TestRetryingStore(t *testing.T) {
	ctx := context.Background()
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	t.Run("transient failures are absorbed", func(t *testing.T) {
		inner := &flakyStore{failures: 2, err: fmt.Errorf("save: %w", deaddrop.ErrUnavailable)}
		store := deaddrop.NewRetryingStore(inner, policy)

		err := store.Save(ctx, "id", deaddrop.FileRecord{}, time.Minute)
		assert.NoError(t, err)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("not found fails fast", func(t *testing.T) {
		inner := &flakyStore{failures: 3, err: deaddrop.ErrNotFound}
		store := deaddrop.NewRetryingStore(inner, policy)

		_, err := store.Get(ctx, "id")
		assert.ErrorIs(t, err, deaddrop.ErrNotFound)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("exhausted retries keep the failure kind", func(t *testing.T) {
		inner := &flakyStore{failures: 10, err: fmt.Errorf("increment: %w", deaddrop.ErrTimeout)}
		store := deaddrop.NewRetryingStore(inner, policy)

		_, err := store.Increment(ctx, "id")
		assert.ErrorIs(t, err, deaddrop.ErrTimeout)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("ping is not retried", func(t *testing.T) {
		inner := &flakyStore{failures: 1, err: fmt.Errorf("ping: %w", deaddrop.ErrUnavailable)}
		store := deaddrop.NewRetryingStore(inner, policy)

		err := store.Ping(ctx)
		assert.ErrorIs(t, err, deaddrop.ErrUnavailable)
		assert.Equal(t, 1, inner.calls)
	})
}
