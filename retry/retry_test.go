package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deaddrop/deaddrop/retry"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func TestDo(t *testing.T) {
	ctx := context.Background()
	fast := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	t.Run("first attempt succeeds", func(t *testing.T) {
		calls := 0
		err := retry.Do(ctx, "op", fast, func(context.Context) error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient failure is retried until success", func(t *testing.T) {
		calls := 0
		err := retry.Do(ctx, "op", fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-transient failure propagates immediately", func(t *testing.T) {
		p := fast
		p.Classify = func(err error) bool { return errors.Is(err, errTransient) }

		calls := 0
		err := retry.Do(ctx, "op", p, func(context.Context) error {
			calls++
			return errFatal
		})
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausted attempts keep the last error kind", func(t *testing.T) {
		calls := 0
		err := retry.Do(ctx, "op", fast, func(context.Context) error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})

	t.Run("nil classifier retries everything", func(t *testing.T) {
		calls := 0
		err := retry.Do(ctx, "op", fast, func(context.Context) error {
			calls++
			return errFatal
		})
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 3, calls)
	})

	t.Run("cancelled context stops the backoff wait", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)

		p := retry.Policy{MaxAttempts: 5, BaseDelay: time.Minute}
		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- retry.Do(cancelCtx, "op", p, func(context.Context) error {
				calls++
				return errTransient
			})
		}()

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, 1, calls)
		case <-time.After(2 * time.Second):
			t.Fatal("Do did not return after cancellation")
		}
	})
}
