package deaddrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MetadataStore is a TTL-backed key/value store holding one FileRecord per
// file id. Implementations must be safe for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
type MetadataStore interface {
	// Save unconditionally writes the record under id with an expiry of ttl
	// from now, replacing any previous record and TTL. Overwrite is not an
	// error.
	Save(ctx context.Context, id string, rec FileRecord, ttl time.Duration) error

	// Get returns the current record, or ErrNotFound if it is missing or
	// expired.
	Get(ctx context.Context, id string) (FileRecord, error)

	// Increment advances the download counter by one as a single conditional
	// update: the counter only moves when the record still exists, has not
	// expired, and is below its download limit. The remaining TTL is
	// preserved, never reset. The tri-state result distinguishes success
	// from "expired or absent" and "limit already reached" without an error.
	Increment(ctx context.Context, id string) (IncrementResult, error)

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error

	// TTL returns the remaining time to live, or ErrNotFound when the record
	// never existed or is already gone.
	TTL(ctx context.Context, id string) (time.Duration, error)

	// Ping probes backend liveness.
	Ping(ctx context.Context) error
}

// BlobStore holds the opaque encrypted bytes of uploaded files, keyed by the
// same id as their metadata. Blobs have no TTL; deletion is always explicit.
type BlobStore interface {
	// Save durably persists data under id. Implementations must be
	// crash-safe against partial writes.
	Save(ctx context.Context, id string, data []byte) error

	// Load returns the full blob contents, or ErrNotFound if no blob exists
	// for id.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes the blob if present; deleting an absent blob is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Exists reports whether a blob is present. The missing case is not an
	// error.
	Exists(ctx context.Context, id string) (bool, error)
}

// Cleaner schedules the destruction of a file's blob and metadata. Enqueue
// must not block; it reports whether the id was accepted.
type Cleaner interface {
	Enqueue(id string) bool
}

// Service is the lifecycle coordinator. It owns no long-lived per-file
// state; every call works on its own local variables only, so concurrent
// uploads and downloads need no coordination inside the service.
type Service struct {
	meta           MetadataStore
	blobs          BlobStore
	cleaner        Cleaner
	maxFileSize    int64
	cleanupTimeout time.Duration
	healthTimeout  time.Duration
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	MaxFileSize    int64         // upload size cap in bytes (default 50 MiB)
	CleanupTimeout time.Duration // timeout for compensating deletes (default 30s)
}

// NewService creates a Service on top of the given stores. The cleaner
// receives ids whose download limit has been reached.
func NewService(meta MetadataStore, blobs BlobStore, cleaner Cleaner, cfg ServiceConfig) (*Service, error) {
	if meta == nil {
		return nil, errors.New("new service: nil metadata store")
	}
	if blobs == nil {
		return nil, errors.New("new service: nil blob store")
	}
	if cleaner == nil {
		return nil, errors.New("new service: nil cleaner")
	}

	maxFileSize := cfg.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}

	return &Service{
		meta:           meta,
		blobs:          blobs,
		cleaner:        cleaner,
		maxFileSize:    maxFileSize,
		cleanupTimeout: cleanupTimeout,
		healthTimeout:  2 * time.Second,
	}, nil
}

// Upload stores an encrypted blob and its metadata record.
//
// The blob is written first, then the record with the requested TTL. When
// the metadata write fails the blob is deleted again as compensation, using
// a background context with the configured cleanup timeout so the rollback
// completes even if the request context is already cancelled. A failed
// rollback is logged; the caller still receives the original metadata error.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}

	if len(req.Content) == 0 {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrEmptyFile)
	}
	if int64(len(req.Content)) > s.maxFileSize {
		return UploadResult{}, fmt.Errorf("upload: %w: %d bytes exceeds limit of %d", ErrTooLarge, len(req.Content), s.maxFileSize)
	}
	if !IsAllowedTTL(req.TTLSeconds) {
		return UploadResult{}, fmt.Errorf("upload: %w: %d not in %v", ErrInvalidTTL, req.TTLSeconds, AllowedTTLs)
	}
	if req.MaxDownloads < MinDownloadLimit || req.MaxDownloads > MaxDownloadLimit {
		return UploadResult{}, fmt.Errorf("upload: %w: %d not in [%d,%d]", ErrInvalidLimit, req.MaxDownloads, MinDownloadLimit, MaxDownloadLimit)
	}

	filename := SanitizeFilename(req.Filename)
	if filename == "" || len(filename) > MaxFilenameLength {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrInvalidFilename)
	}

	id := uuid.New().String()

	if err := s.blobs.Save(ctx, id, req.Content); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w: %w", id, ErrStorage, err)
	}

	now := time.Now().UTC()
	rec := FileRecord{
		Filename:     filename,
		Size:         int64(len(req.Content)),
		Downloads:    0,
		MaxDownloads: req.MaxDownloads,
		CreatedAt:    now,
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second

	if err := s.meta.Save(ctx, id, rec, ttl); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.blobs.Delete(cleanupCtx, id); delErr != nil {
			slog.Error("upload rollback failed, blob orphaned", "id", id, "err", delErr)
		}
		return UploadResult{}, fmt.Errorf("upload %s: %w: %w", id, ErrMetadata, err)
	}

	slog.Info("file uploaded",
		"id", id,
		"size", rec.Size,
		"ttl", req.TTLSeconds,
		"max_downloads", rec.MaxDownloads,
	)

	return UploadResult{ID: id, ExpiresAt: now.Add(ttl)}, nil
}

// Download returns the blob bytes and display filename for id and counts the
// download. When the new count reaches the file's download limit, deletion
// of blob and metadata is handed to the cleaner after the payload has been
// produced; scheduling never blocks or fails this call.
//
// Every unavailable state collapses to ErrNotFound: missing and expired
// records, records that expired between lookup and counting, records whose
// counter was already exhausted, and metadata records whose blob vanished.
// The last case additionally removes the orphaned record, best effort.
func (s *Service) Download(ctx context.Context, id string) (DownloadResult, error) {
	if err := ctx.Err(); err != nil {
		return DownloadResult{}, fmt.Errorf("download: %w", err)
	}

	// Ids are generated as UUIDs; anything else cannot exist.
	if _, err := uuid.Parse(id); err != nil {
		return DownloadResult{}, fmt.Errorf("download: %w", ErrNotFound)
	}

	rec, err := s.meta.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("download failed", "id", id, "reason", "metadata_lookup", "err", err)
		} else {
			slog.Warn("download failed", "id", id, "reason", "not_found_or_expired")
		}
		return DownloadResult{}, fmt.Errorf("download %s: %w", id, ErrNotFound)
	}

	exists, err := s.blobs.Exists(ctx, id)
	if err != nil {
		slog.Error("download failed", "id", id, "reason", "exists_check", "err", err)
		return DownloadResult{}, fmt.Errorf("download %s: %w: %w", id, ErrStorage, err)
	}
	if !exists {
		// Metadata survived its blob. Remove the orphaned record so later
		// requests fail fast.
		if delErr := s.meta.Delete(ctx, id); delErr != nil {
			slog.Warn("orphan metadata cleanup failed", "id", id, "err", delErr)
		}
		slog.Error("download failed", "id", id, "reason", "metadata_exists_but_blob_missing")
		return DownloadResult{}, fmt.Errorf("download %s: %w", id, ErrNotFound)
	}

	res, err := s.meta.Increment(ctx, id)
	if err != nil {
		slog.Error("download failed", "id", id, "reason", "increment", "err", err)
		return DownloadResult{}, fmt.Errorf("download %s: %w", id, ErrNotFound)
	}
	switch res.Status {
	case IncrementExpired:
		slog.Warn("download failed", "id", id, "reason", "expired_during_request")
		return DownloadResult{}, fmt.Errorf("download %s: %w", id, ErrNotFound)
	case IncrementLimitReached:
		slog.Warn("download failed", "id", id, "reason", "limit_reached")
		return DownloadResult{}, fmt.Errorf("download %s: %w", id, ErrNotFound)
	}

	data, err := s.blobs.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Error("download failed", "id", id, "reason", "blob_vanished")
			return DownloadResult{}, fmt.Errorf("download %s: %w", id, ErrNotFound)
		}
		return DownloadResult{}, fmt.Errorf("download %s: %w: %w", id, ErrStorage, err)
	}

	slog.Info("file downloaded", "id", id, "download_count", res.Downloads, "max_downloads", rec.MaxDownloads)

	if res.Downloads >= rec.MaxDownloads {
		if s.cleaner.Enqueue(id) {
			slog.Info("cleanup scheduled", "id", id, "downloads", res.Downloads)
		} else {
			slog.Error("cleanup scheduling failed", "id", id)
		}
	}

	return DownloadResult{Content: data, Filename: rec.Filename}, nil
}

// Stat reports remaining downloads, seconds to expiry, and size for a file
// without counting a download. Unavailable states collapse to ErrNotFound
// exactly like Download.
func (s *Service) Stat(ctx context.Context, id string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, fmt.Errorf("stat: %w", err)
	}

	if _, err := uuid.Parse(id); err != nil {
		return FileInfo{}, fmt.Errorf("stat: %w", ErrNotFound)
	}

	rec, err := s.meta.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("stat failed", "id", id, "reason", "metadata_lookup", "err", err)
		}
		return FileInfo{}, fmt.Errorf("stat %s: %w", id, ErrNotFound)
	}

	ttl, err := s.meta.TTL(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("stat failed", "id", id, "reason", "ttl_lookup", "err", err)
		}
		return FileInfo{}, fmt.Errorf("stat %s: %w", id, ErrNotFound)
	}

	remaining := rec.MaxDownloads - rec.Downloads
	if remaining < 0 {
		remaining = 0
	}

	return FileInfo{
		DownloadsRemaining: remaining,
		ExpiresIn:          int64(ttl.Seconds()),
		Size:               rec.Size,
	}, nil
}

// Health probes the metadata backend with a short fixed timeout. It never
// returns an error; an unreachable backend reports false.
func (s *Service) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()

	if err := s.meta.Ping(ctx); err != nil {
		slog.Warn("health check failed", "err", err)
		return false
	}
	return true
}
