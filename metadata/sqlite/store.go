// Package sqlite implements the MetadataStore on SQLite for single-node
// deployments that want records to survive a restart. SQLite has no native
// key expiry, so each record carries an absolute deadline: reads treat rows
// past their deadline as absent and writes purge them opportunistically.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/deaddrop/deaddrop"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultTable holds records when no table name is configured.
const DefaultTable = "deaddrop_files"

// Store provides metadata operations on a SQLite database.
type Store struct {
	db    *sql.DB
	table string
}

// NewStore creates a Store using db. The table name is interpolated into
// statements and must satisfy deaddrop.IsValidTableName; an empty name
// falls back to DefaultTable.
func NewStore(db *sql.DB, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !deaddrop.IsValidTableName(table) {
		return nil, fmt.Errorf("new sqlite store: invalid table name: %s", table)
	}
	return &Store{db: db, table: table}, nil
}

// Migrate creates the records table and its expiry index if they do not
// exist. Deadlines are stored as unix milliseconds so expiry comparisons
// are plain integer comparisons.
func Migrate(ctx context.Context, db *sql.DB, table string) error {
	if table == "" {
		table = DefaultTable
	}
	if !deaddrop.IsValidTableName(table) {
		return fmt.Errorf("migrate: invalid table name: %s", table)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			size INTEGER NOT NULL,
			downloads INTEGER NOT NULL DEFAULT 0,
			max_downloads INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`, table)
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("migrate: create table: %w", err)
	}

	createIndex := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s (expires_at)`, table, table)
	if _, err := db.ExecContext(ctx, createIndex); err != nil {
		return fmt.Errorf("migrate: create index: %w", err)
	}

	return nil
}

// Save upserts the record with a deadline of ttl from now. Expired rows are
// purged in the same call, standing in for the key expiry a KV store would
// do on its own.
func (s *Store) Save(ctx context.Context, id string, rec deaddrop.FileRecord, ttl time.Duration) error {
	now := time.Now()

	purge := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, s.table)
	if _, err := s.db.ExecContext(ctx, purge, now.UnixMilli()); err != nil {
		return wrapErr("save record: purge expired", err)
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s (id, filename, size, downloads, max_downloads, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			downloads = excluded.downloads,
			max_downloads = excluded.max_downloads,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`, s.table)

	_, err := s.db.ExecContext(ctx, upsert,
		id,
		rec.Filename,
		rec.Size,
		rec.Downloads,
		rec.MaxDownloads,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return wrapErr("save record", err)
	}
	return nil
}

// Get returns the current record, treating rows past their deadline as
// absent.
func (s *Store) Get(ctx context.Context, id string) (deaddrop.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT filename, size, downloads, max_downloads, created_at
		FROM %s
		WHERE id = ? AND expires_at > ?`, s.table)

	var rec deaddrop.FileRecord
	var createdAt string

	err := s.db.QueryRowContext(ctx, query, id, time.Now().UnixMilli()).Scan(
		&rec.Filename, &rec.Size, &rec.Downloads, &rec.MaxDownloads, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deaddrop.FileRecord{}, deaddrop.ErrNotFound
		}
		return deaddrop.FileRecord{}, wrapErr("get record", err)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return deaddrop.FileRecord{}, fmt.Errorf("get record: parse created_at: %w", err)
	}

	return rec, nil
}

// Increment advances the counter with one conditional UPDATE guarded by the
// deadline and the download limit, so concurrent callers race on the
// database row, not on a read-modify-write in this process. The deadline
// column is untouched, preserving the remaining TTL.
func (s *Store) Increment(ctx context.Context, id string) (deaddrop.IncrementResult, error) {
	update := fmt.Sprintf(`
		UPDATE %s
		SET downloads = downloads + 1
		WHERE id = ? AND expires_at > ? AND downloads < max_downloads
		RETURNING downloads`, s.table)

	var downloads int
	err := s.db.QueryRowContext(ctx, update, id, time.Now().UnixMilli()).Scan(&downloads)
	if err == nil {
		return deaddrop.IncrementResult{Status: deaddrop.IncrementOK, Downloads: downloads}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return deaddrop.IncrementResult{}, wrapErr("increment record", err)
	}

	// No row moved: either the record is gone/expired or the limit is hit.
	probe := fmt.Sprintf(`SELECT downloads FROM %s WHERE id = ? AND expires_at > ?`, s.table)
	err = s.db.QueryRowContext(ctx, probe, id, time.Now().UnixMilli()).Scan(&downloads)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deaddrop.IncrementResult{Status: deaddrop.IncrementExpired}, nil
		}
		return deaddrop.IncrementResult{}, wrapErr("increment record", err)
	}

	return deaddrop.IncrementResult{Status: deaddrop.IncrementLimitReached, Downloads: downloads}, nil
}

// Delete removes the record; deleting an absent row is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return wrapErr("delete record", err)
	}
	return nil
}

// TTL returns the remaining time to live, or deaddrop.ErrNotFound when the
// record is missing or already past its deadline.
func (s *Store) TTL(ctx context.Context, id string) (time.Duration, error) {
	query := fmt.Sprintf(`SELECT expires_at FROM %s WHERE id = ? AND expires_at > ?`, s.table)

	now := time.Now()
	var expiresAt int64

	err := s.db.QueryRowContext(ctx, query, id, now.UnixMilli()).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, deaddrop.ErrNotFound
		}
		return 0, wrapErr("ttl record", err)
	}

	return time.Duration(expiresAt-now.UnixMilli()) * time.Millisecond, nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// wrapErr maps an exceeded deadline to the transient ErrTimeout kind; other
// driver errors on an embedded database are fatal and pass through.
func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, deaddrop.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
