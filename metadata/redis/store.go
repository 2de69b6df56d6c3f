// Package redis implements the MetadataStore on Redis. Records are stored
// as JSON under namespaced keys with the store's native expiry, so expired
// records disappear without any janitor. The download counter is advanced
// by a server-side script, making the conditional update atomic.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deaddrop/deaddrop"
)

// DefaultNamespace prefixes record keys when no namespace is configured.
const DefaultNamespace = "file"

// Store provides metadata operations on a Redis client.
type Store struct {
	client *redis.Client
	ns     string
}

// NewStore creates a Store using client. An empty namespace falls back to
// DefaultNamespace.
func NewStore(client *redis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{client: client, ns: namespace}
}

func (s *Store) key(id string) string {
	return s.ns + ":" + id
}

// incrScript advances the download counter in one server-side step: absent
// or expired keys report expired, exhausted counters report the limit, and
// a successful bump rewrites the record with its remaining TTL intact.
// Returns {-1, 0} for expired, {-2, downloads} at the limit, and
// {0, downloads} on success.
var incrScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return {-1, 0}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return {-1, 0}
end
local rec = cjson.decode(raw)
if rec.downloads >= rec.max_downloads then
  return {-2, rec.downloads}
end
rec.downloads = rec.downloads + 1
redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
return {0, rec.downloads}
`)

// Save writes the record as JSON with an expiry of ttl from now.
func (s *Store) Save(ctx context.Context, id string, rec deaddrop.FileRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save record: encode: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return wrapErr("save record", err)
	}
	return nil
}

// Get returns the current record, or deaddrop.ErrNotFound if the key is
// missing or already expired.
func (s *Store) Get(ctx context.Context, id string) (deaddrop.FileRecord, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return deaddrop.FileRecord{}, deaddrop.ErrNotFound
		}
		return deaddrop.FileRecord{}, wrapErr("get record", err)
	}

	var rec deaddrop.FileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return deaddrop.FileRecord{}, fmt.Errorf("get record: decode: %w", err)
	}
	return rec, nil
}

// Increment runs the conditional counter update script.
func (s *Store) Increment(ctx context.Context, id string) (deaddrop.IncrementResult, error) {
	raw, err := incrScript.Run(ctx, s.client, []string{s.key(id)}).Slice()
	if err != nil {
		return deaddrop.IncrementResult{}, wrapErr("increment record", err)
	}
	if len(raw) != 2 {
		return deaddrop.IncrementResult{}, fmt.Errorf("increment record: unexpected script reply of %d values", len(raw))
	}

	status, ok := raw[0].(int64)
	if !ok {
		return deaddrop.IncrementResult{}, fmt.Errorf("increment record: unexpected script status %T", raw[0])
	}
	count, _ := raw[1].(int64)

	switch status {
	case -1:
		return deaddrop.IncrementResult{Status: deaddrop.IncrementExpired}, nil
	case -2:
		return deaddrop.IncrementResult{Status: deaddrop.IncrementLimitReached, Downloads: int(count)}, nil
	default:
		return deaddrop.IncrementResult{Status: deaddrop.IncrementOK, Downloads: int(count)}, nil
	}
}

// Delete removes the record; deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return wrapErr("delete record", err)
	}
	return nil
}

// TTL returns the remaining time to live, or deaddrop.ErrNotFound when the
// key is missing or carries no expiry.
func (s *Store) TTL(ctx context.Context, id string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, s.key(id)).Result()
	if err != nil {
		return 0, wrapErr("ttl record", err)
	}
	if d < 0 {
		return 0, deaddrop.ErrNotFound
	}
	return d, nil
}

// Ping probes the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// wrapErr classifies driver errors into the transient kinds the retry
// policy understands: deadline and network timeouts become ErrTimeout,
// other network-level failures become ErrUnavailable, and anything else
// (script errors, corrupt payloads) passes through as fatal.
func wrapErr(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w: %w", op, deaddrop.ErrTimeout, err)
	case errors.As(err, &netErr), errors.Is(err, redis.ErrClosed):
		return fmt.Errorf("%s: %w: %w", op, deaddrop.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
