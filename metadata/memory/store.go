// Package memory provides an in-memory MetadataStore with TTL expiry.
// Intended for tests and single-process development setups; records do not
// survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/deaddrop/deaddrop"
)

// Store keeps records in a map guarded by a mutex. Expired entries are
// purged lazily on access; the mutex is held across the check-and-update of
// Increment, so the counter admits exactly one winner per remaining slot.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	rec       deaddrop.FileRecord
	expiresAt time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Save writes the record with an expiry of ttl from now, replacing any
// previous record and deadline.
func (s *Store) Save(ctx context.Context, id string, rec deaddrop.FileRecord, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = entry{rec: rec, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Get returns the current record, or deaddrop.ErrNotFound if missing or
// expired.
func (s *Store) Get(ctx context.Context, id string) (deaddrop.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return deaddrop.FileRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	if !ok {
		return deaddrop.FileRecord{}, deaddrop.ErrNotFound
	}
	return e.rec, nil
}

// Increment advances the counter under the lock. The expiry deadline is
// untouched, preserving the remaining TTL.
func (s *Store) Increment(ctx context.Context, id string) (deaddrop.IncrementResult, error) {
	if err := ctx.Err(); err != nil {
		return deaddrop.IncrementResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	if !ok {
		return deaddrop.IncrementResult{Status: deaddrop.IncrementExpired}, nil
	}

	if e.rec.Downloads >= e.rec.MaxDownloads {
		return deaddrop.IncrementResult{
			Status:    deaddrop.IncrementLimitReached,
			Downloads: e.rec.Downloads,
		}, nil
	}

	e.rec.Downloads++
	s.entries[id] = e

	return deaddrop.IncrementResult{
		Status:    deaddrop.IncrementOK,
		Downloads: e.rec.Downloads,
	}, nil
}

// Delete removes the record; deleting an absent record is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// TTL returns the remaining time to live, or deaddrop.ErrNotFound when the
// record is missing or expired.
func (s *Store) TTL(ctx context.Context, id string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	if !ok {
		return 0, deaddrop.ErrNotFound
	}
	return time.Until(e.expiresAt), nil
}

// Ping always succeeds; the store lives in-process.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// live returns the entry for id if present and unexpired, purging it
// otherwise. Callers must hold the mutex.
func (s *Store) live(id string) (entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return entry{}, false
	}
	if !time.Now().Before(e.expiresAt) {
		delete(s.entries, id)
		return entry{}, false
	}
	return e, true
}
