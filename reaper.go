package deaddrop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/deaddrop/deaddrop/retry"
)

// Reaper destroys a file's blob and metadata after its download limit is
// reached. Deletion runs detached from the request that triggered it, on a
// bounded work queue with per-id retry, so failures are retried and logged
// instead of silently discarded. Both deletes are idempotent; running the
// same id twice is harmless.
type Reaper struct {
	blobs BlobStore
	meta  MetadataStore

	policy  retry.Policy
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan string
	wg     sync.WaitGroup
}

// ReaperConfig holds configuration options for Reaper.
type ReaperConfig struct {
	QueueSize  int           // pending deletions before Enqueue rejects (default 128)
	Attempts   int           // deletion attempts per id (default 3)
	RetryDelay time.Duration // backoff base between attempts (default 100ms)
}

// NewReaper creates a Reaper and starts its worker. Call Close to drain the
// queue and stop the worker.
func NewReaper(blobs BlobStore, meta MetadataStore, cfg ReaperConfig) *Reaper {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 128
	}

	r := &Reaper{
		blobs: blobs,
		meta:  meta,
		policy: retry.Policy{
			MaxAttempts: cfg.Attempts,
			BaseDelay:   cfg.RetryDelay,
		},
		timeout: time.Minute,
		queue:   make(chan string, queueSize),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

// Enqueue schedules deletion of id. It never blocks; a full queue or a
// closed reaper rejects the id, which the caller observes as false.
func (r *Reaper) Enqueue(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	select {
	case r.queue <- id:
		return true
	default:
		slog.Error("reaper queue full, deletion rejected", "id", id)
		return false
	}
}

// Close stops accepting new ids, waits for the pending queue to drain, and
// stops the worker.
func (r *Reaper) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Reaper) run() {
	defer r.wg.Done()

	for id := range r.queue {
		r.reap(id)
	}
}

// reap deletes blob then metadata. By the time it runs the response has
// already been delivered, so errors are logged, never re-raised.
func (r *Reaper) reap(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := retry.Do(ctx, "reap", r.policy, func(ctx context.Context) error {
		if err := r.blobs.Delete(ctx, id); err != nil {
			return err
		}
		return r.meta.Delete(ctx, id)
	})
	if err != nil {
		slog.Error("cleanup failed", "id", id, "err", err)
		return
	}

	slog.Info("file deleted", "id", id, "reason", "download_limit_reached")
}
