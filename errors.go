package deaddrop

import "errors"

var (
	// ErrNotFound is returned when a file is missing, expired, lost an
	// increment race, or was orphaned. The cases are deliberately collapsed
	// so callers cannot distinguish "never existed" from "just expired";
	// logs keep the distinct reasons.
	ErrNotFound = errors.New("file not found or has expired")

	// ErrEmptyFile is returned when an upload carries no content.
	ErrEmptyFile = errors.New("file content is empty")
	// ErrTooLarge is returned when an upload exceeds the configured size cap.
	ErrTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrInvalidTTL is returned when the requested TTL is not an offered option.
	ErrInvalidTTL = errors.New("invalid ttl")
	// ErrInvalidLimit is returned when the download limit is out of range.
	ErrInvalidLimit = errors.New("invalid download limit")
	// ErrInvalidFilename is returned when the sanitized filename is empty or
	// too long.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrStorage marks a blob store read/write/delete failure.
	ErrStorage = errors.New("storage failure")
	// ErrMetadata marks a metadata store failure after retries are exhausted.
	ErrMetadata = errors.New("metadata failure")

	// ErrUnavailable marks a transient connection failure to a backend.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrTimeout marks a backend operation that exceeded its deadline, kept
	// distinct from ErrUnavailable so callers can tell "the backend is slow"
	// from "the backend is unreachable".
	ErrTimeout = errors.New("operation timed out")
)
