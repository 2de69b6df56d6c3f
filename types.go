package deaddrop

import (
	"regexp"
	"strings"
	"time"
)

// TTL options a client may request at upload, in seconds.
const (
	TTLHour     = 3600
	TTLDay      = 86400
	TTLThreeDay = 259200
)

// AllowedTTLs lists the accepted upload TTLs in seconds.
var AllowedTTLs = []int{TTLHour, TTLDay, TTLThreeDay}

// Bounds for the per-file download limit.
const (
	MinDownloadLimit = 1
	MaxDownloadLimit = 5
)

// MaxFilenameLength bounds the sanitized display filename.
const MaxFilenameLength = 255

// DefaultMaxFileSize is the upload size cap when none is configured (50 MiB).
const DefaultMaxFileSize int64 = 50 << 20

// FileRecord is the metadata descriptor of one uploaded blob. It is keyed by
// the file id in the MetadataStore and never holds the id itself. Its
// physical lifetime is bounded by the TTL attached at creation; updates
// preserve the remaining TTL so the record always expires at its original
// absolute deadline.
type FileRecord struct {
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	Downloads    int       `json:"downloads"`
	MaxDownloads int       `json:"max_downloads"`
	CreatedAt    time.Time `json:"created_at"`
}

// UploadRequest carries the parameters of a single upload.
type UploadRequest struct {
	Content      []byte
	TTLSeconds   int
	MaxDownloads int
	Filename     string
}

// UploadResult is returned on a successful upload.
type UploadResult struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DownloadResult carries the blob bytes and display filename of a counted
// download.
type DownloadResult struct {
	Content  []byte
	Filename string
}

// FileInfo describes a file without counting a download, so clients can show
// "N downloads remaining" before fetching.
type FileInfo struct {
	DownloadsRemaining int   `json:"downloads_remaining"`
	ExpiresIn          int64 `json:"expires_in"`
	Size               int64 `json:"size"`
}

// IncrementStatus is the outcome of the conditional download-counter update.
type IncrementStatus int

const (
	// IncrementOK means the counter advanced; Downloads holds the new value.
	IncrementOK IncrementStatus = iota
	// IncrementExpired means the record is absent or expired, including the
	// window between a successful Get and the Increment itself.
	IncrementExpired
	// IncrementLimitReached means the counter already hit the download limit
	// and was not advanced. The record is logically dead.
	IncrementLimitReached
)

// IncrementResult is the tri-state result of MetadataStore.Increment.
type IncrementResult struct {
	Status    IncrementStatus
	Downloads int
}

// IsAllowedTTL reports whether a requested TTL matches one of the offered
// options.
func IsAllowedTTL(seconds int) bool {
	for _, ttl := range AllowedTTLs {
		if seconds == ttl {
			return true
		}
	}
	return false
}

var filenameSanitizer = strings.NewReplacer("/", "_", `\`, "_", "\x00", "")

// SanitizeFilename strips path separators and NUL bytes from a display
// filename. The result is stored verbatim in the metadata record.
func SanitizeFilename(name string) string {
	return filenameSanitizer.Replace(name)
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric
// with underscores, max 63 chars). The SQL metadata backends validate the
// configured table name with this before interpolating it into statements.
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}
