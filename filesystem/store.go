// Package filesystem provides the local-disk blob store. Blobs are written
// atomically using a temp file and rename, stored flat as "<id>.enc" inside
// a sandboxed os.Root, and only ever deleted explicitly.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/deaddrop/deaddrop"
)

// blobSuffix marks stored objects as client-side-encrypted payloads.
const blobSuffix = ".enc"

// DefaultOpTimeout bounds a single store operation, independent of the
// request deadline, so a storage hiccup cannot stall a request forever.
const DefaultOpTimeout = 10 * time.Second

// Store provides blob storage on the local filesystem.
type Store struct {
	root      *os.Root
	opTimeout time.Duration
}

// NewStore creates a Store rooted at root. The root sandboxes all file
// operations, preventing path traversal. A non-positive opTimeout falls
// back to DefaultOpTimeout.
func NewStore(root *os.Root, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Store{root: root, opTimeout: opTimeout}
}

func blobName(id string) string {
	return id + blobSuffix
}

// wrapErr attaches the operation name and maps an exceeded deadline to
// deaddrop.ErrTimeout, keeping timeouts distinguishable from other I/O
// failures.
func (s *Store) wrapErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, deaddrop.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Save atomically writes data as the blob for id. The bytes go to a temp
// file first, are synced, and are renamed into place; any failure removes
// the temp artifact, best effort, so no partial blob ever becomes visible.
func (s *Store) Save(ctx context.Context, id string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return s.wrapErr(ctx, "save blob", err)
	}

	tmpName := tmpFileName()
	t, err := s.root.Create(tmpName)
	if err != nil {
		return s.wrapErr(ctx, "save blob", err)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close temp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpName); rmErr != nil {
				slog.Warn("failed to remove temp file", "name", tmpName, "err", rmErr)
			}
		}
	}()

	if _, err := t.Write(data); err != nil {
		return s.wrapErr(ctx, "save blob", err)
	}

	if err := ctx.Err(); err != nil {
		return s.wrapErr(ctx, "save blob", err)
	}

	if err := t.Sync(); err != nil {
		return s.wrapErr(ctx, "save blob", err)
	}

	if err := s.root.Rename(tmpName, blobName(id)); err != nil {
		return s.wrapErr(ctx, "save blob", err)
	}

	success = true
	return nil
}

// Load returns the full blob contents for id, or deaddrop.ErrNotFound if no
// blob exists.
func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return nil, s.wrapErr(ctx, "load blob", err)
	}

	f, err := s.root.Open(blobName(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, deaddrop.ErrNotFound
		}
		return nil, s.wrapErr(ctx, "load blob", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close blob", "id", id, "err", closeErr)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, s.wrapErr(ctx, "load blob", err)
	}

	return data, nil
}

// Delete removes the blob for id. Deleting an absent blob is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return s.wrapErr(ctx, "delete blob", err)
	}

	if err := s.root.Remove(blobName(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return s.wrapErr(ctx, "delete blob", err)
	}

	return nil
}

// Exists reports whether a blob is stored for id. The missing case is never
// an error.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return false, s.wrapErr(ctx, "stat blob", err)
	}

	if _, err := s.root.Stat(blobName(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, s.wrapErr(ctx, "stat blob", err)
	}

	return true, nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
