// Package metadata wires a configured backend into a deaddrop.MetadataStore.
// It owns opening the connection, pinging it, and running migrations, so
// callers receive a ready store and a cleanup function.
package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/deaddrop/deaddrop"
	"github.com/deaddrop/deaddrop/metadata/memory"
	"github.com/deaddrop/deaddrop/metadata/postgres"
	"github.com/deaddrop/deaddrop/metadata/redis"
	"github.com/deaddrop/deaddrop/metadata/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the backend: "redis", "sqlite", "postgres" or "memory"
	Type string `mapstructure:"type" validate:"required,oneof=redis sqlite postgres memory"`
	// URL is the connection string; ignored for the memory backend
	URL string `mapstructure:"url" validate:"required_unless=Type memory"`
	// Namespace is the redis key prefix or SQL table name; empty uses the
	// backend default
	Namespace string `mapstructure:"namespace"`
}

// Connect establishes a connection to the configured backend, runs
// migrations where the backend has any, and returns a MetadataStore. The
// returned cleanup function should be called to close the connection.
func Connect(ctx context.Context, cfg Config) (deaddrop.MetadataStore, func(), error) {
	switch cfg.Type {
	case "redis":
		return connectRedis(ctx, cfg.URL, cfg.Namespace)
	case "sqlite":
		return connectSQLite(ctx, cfg.URL, cfg.Namespace)
	case "postgres":
		return connectPostgres(ctx, cfg.URL, cfg.Namespace)
	case "memory":
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported metadata backend: %s", cfg.Type)
	}
}

func connectRedis(ctx context.Context, url, namespace string) (deaddrop.MetadataStore, func(), error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	cleanup := func() {
		_ = client.Close()
	}

	return redis.NewStore(client, namespace), cleanup, nil
}

func connectSQLite(ctx context.Context, dsn, table string) (deaddrop.MetadataStore, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err = sqlite.Migrate(ctx, db, table); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	store, err := sqlite.NewStore(db, table)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create sqlite store: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return store, cleanup, nil
}

func connectPostgres(ctx context.Context, dsn, table string) (deaddrop.MetadataStore, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err = postgres.Migrate(ctx, pool, table); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	store, err := postgres.NewStore(pool, table)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create postgres store: %w", err)
	}

	return store, pool.Close, nil
}
