package deaddrop

import (
	"context"
	"errors"
	"time"

	"github.com/deaddrop/deaddrop/retry"
)

// Transient reports whether err looks like a connection or timeout failure
// worth retrying. Backends mark such failures with ErrUnavailable or
// ErrTimeout; everything else, including ErrNotFound, fails fast.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// retryingStore decorates a MetadataStore with the retry policy. Every
// operation except the health probe is wrapped; Ping already runs under a
// short fixed timeout and must answer promptly.
type retryingStore struct {
	store  MetadataStore
	policy retry.Policy
}

// NewRetryingStore wraps store so transient failures are retried with
// bounded exponential backoff. A policy without a classifier gets Transient.
func NewRetryingStore(store MetadataStore, policy retry.Policy) MetadataStore {
	if policy.Classify == nil {
		policy.Classify = Transient
	}
	return &retryingStore{store: store, policy: policy}
}

func (r *retryingStore) Save(ctx context.Context, id string, rec FileRecord, ttl time.Duration) error {
	return retry.Do(ctx, "metadata save", r.policy, func(ctx context.Context) error {
		return r.store.Save(ctx, id, rec, ttl)
	})
}

func (r *retryingStore) Get(ctx context.Context, id string) (FileRecord, error) {
	var rec FileRecord
	err := retry.Do(ctx, "metadata get", r.policy, func(ctx context.Context) error {
		var opErr error
		rec, opErr = r.store.Get(ctx, id)
		return opErr
	})
	return rec, err
}

func (r *retryingStore) Increment(ctx context.Context, id string) (IncrementResult, error) {
	var res IncrementResult
	err := retry.Do(ctx, "metadata increment", r.policy, func(ctx context.Context) error {
		var opErr error
		res, opErr = r.store.Increment(ctx, id)
		return opErr
	})
	return res, err
}

func (r *retryingStore) Delete(ctx context.Context, id string) error {
	return retry.Do(ctx, "metadata delete", r.policy, func(ctx context.Context) error {
		return r.store.Delete(ctx, id)
	})
}

func (r *retryingStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	var ttl time.Duration
	err := retry.Do(ctx, "metadata ttl", r.policy, func(ctx context.Context) error {
		var opErr error
		ttl, opErr = r.store.TTL(ctx, id)
		return opErr
	})
	return ttl, err
}

func (r *retryingStore) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
