// Package postgres implements the MetadataStore on PostgreSQL using a
// pooled pgx connection, for deployments that already run Postgres and want
// metadata to share it. Like the SQLite backend it stores an absolute
// deadline per record and treats rows past it as absent.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deaddrop/deaddrop"
)

// DefaultTable holds records when no table name is configured.
const DefaultTable = "deaddrop_files"

// Store provides metadata operations on a Postgres pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// NewStore creates a Store using pool. The table name is interpolated into
// statements and must satisfy deaddrop.IsValidTableName; an empty name
// falls back to DefaultTable.
func NewStore(pool *pgxpool.Pool, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !deaddrop.IsValidTableName(table) {
		return nil, fmt.Errorf("new postgres store: invalid table name: %s", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Migrate creates the records table and its expiry index if they do not
// exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string) error {
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
			size BIGINT NOT NULL,
			downloads INTEGER NOT NULL DEFAULT 0,
			max_downloads INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`, table)
	if _, err := pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("migrate: create table: %w", err)
	}

	createIndex := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s (expires_at)`, table, table)
	if _, err := pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("migrate: create index: %w", err)
	}

	return nil
}

// Save upserts the record with a deadline of ttl from now, purging expired
// rows in the same call.
func (s *Store) Save(ctx context.Context, id string, rec deaddrop.FileRecord, ttl time.Duration) error {
	purge := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= now()`, s.table)
	if _, err := s.pool.Exec(ctx, purge); err != nil {
		return wrapErr("save record: purge expired", err)
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s (id, filename, size, downloads, max_downloads, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			size = EXCLUDED.size,
			downloads = EXCLUDED.downloads,
			max_downloads = EXCLUDED.max_downloads,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`, s.table)

	_, err := s.pool.Exec(ctx, upsert,
		id,
		rec.Filename,
		rec.Size,
		rec.Downloads,
		rec.MaxDownloads,
		rec.CreatedAt.UTC(),
		time.Now().UTC().Add(ttl),
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
		WHERE id = $1 AND expires_at > now()`, s.table)

	var rec deaddrop.FileRecord
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.Filename, &rec.Size, &rec.Downloads, &rec.MaxDownloads, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return deaddrop.FileRecord{}, deaddrop.ErrNotFound
		}
		return deaddrop.FileRecord{}, wrapErr("get record", err)
	}

	return rec, nil
}

// Increment advances the counter with one conditional UPDATE guarded by the
// deadline and the download limit; the deadline column is untouched, so the
// remaining TTL is preserved.
func (s *Store) Increment(ctx context.Context, id string) (deaddrop.IncrementResult, error) {
	update := fmt.Sprintf(`
		UPDATE %s
		SET downloads = downloads + 1
		WHERE id = $1 AND expires_at > now() AND downloads < max_downloads
		RETURNING downloads`, s.table)

	var downloads int
	err := s.pool.QueryRow(ctx, update, id).Scan(&downloads)
	if err == nil {
		return deaddrop.IncrementResult{Status: deaddrop.IncrementOK, Downloads: downloads}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return deaddrop.IncrementResult{}, wrapErr("increment record", err)
	}

	probe := fmt.Sprintf(`SELECT downloads FROM %s WHERE id = $1 AND expires_at > now()`, s.table)
	err = s.pool.QueryRow(ctx, probe, id).Scan(&downloads)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return deaddrop.IncrementResult{Status: deaddrop.IncrementExpired}, nil
		}
		return deaddrop.IncrementResult{}, wrapErr("increment record", err)
	}

	return deaddrop.IncrementResult{Status: deaddrop.IncrementLimitReached, Downloads: downloads}, nil
}

// Delete removes the record; deleting an absent row is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return wrapErr("delete record", err)
	}
	return nil
}

// TTL returns the remaining time to live, or deaddrop.ErrNotFound when the
// record is missing or already past its deadline.
func (s *Store) TTL(ctx context.Context, id string) (time.Duration, error) {
	query := fmt.Sprintf(`SELECT expires_at FROM %s WHERE id = $1 AND expires_at > now()`, s.table)

	var expiresAt time.Time
	err := s.pool.QueryRow(ctx, query, id).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, deaddrop.ErrNotFound
		}
		return 0, wrapErr("ttl record", err)
	}

	return time.Until(expiresAt), nil
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// wrapErr classifies driver errors into the transient kinds the retry
// policy understands.
func wrapErr(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w: %w", op, deaddrop.ErrTimeout, err)
	case errors.As(err, &netErr):
		return fmt.Errorf("%s: %w: %w", op, deaddrop.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
