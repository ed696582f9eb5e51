// Package sqlitepool provides a ready-made create/destroy pair for pooling
// SQLite handles with stripedpool.
//
// Each pooled resource is a *sql.DB restricted to a single underlying
// connection, so per-handle pragmas hold for every statement issued through
// it and writers serialize per handle instead of fighting inside one shared
// database/sql pool. The pure-Go driver (modernc.org/sqlite) keeps the
// package CGO-free.
package sqlitepool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/stripedpool"
	"github.com/giantswarm/stripedpool/internal/core"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"
)

// busyTimeoutMs is the SQLite busy_timeout pragma value in milliseconds.
// It prevents "database is locked" errors when several pooled handles write
// concurrently. Lock waits typically resolve within a few milliseconds; 5
// seconds is a generous ceiling for a local file.
const busyTimeoutMs = 5000

// initLockRetryInterval is the interval between consecutive attempts to
// acquire the schema-initialization file lock. 50ms balances responsiveness
// (low wait after the holder releases) against CPU overhead from polling.
const initLockRetryInterval = 50 * time.Millisecond

// Config describes the database a pool of handles is opened against.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// InitSchema is optional DDL executed once before the pool opens its
	// first handle. Execution is serialized across processes with an
	// exclusive lock on Path + ".init.lock", so concurrent test binaries
	// sharing one database file initialize it without tripping over each
	// other. The DDL should be idempotent (CREATE TABLE IF NOT EXISTS and
	// friends): the lock orders initializers, it does not elect one.
	InitSchema string
}

// Open initializes the database if requested and returns a striped pool of
// single-connection handles. Pool sizing and TTL behavior are configured
// through the usual stripedpool options; the returned pool must be released
// with Close, which closes every cached handle.
func Open(ctx context.Context, cfg Config, opts ...stripedpool.Option) (*stripedpool.Pool[*sql.DB], error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlitepool: database path must not be empty")
	}

	if cfg.InitSchema != "" {
		if err := initSchema(ctx, cfg); err != nil {
			return nil, err
		}
	}

	create := func(ctx context.Context) (*sql.DB, error) {
		return openHandle(ctx, cfg.Path)
	}
	destroy := func(db *sql.DB) error {
		return db.Close()
	}

	return stripedpool.New(create, destroy, opts...)
}

// openHandle opens a *sql.DB limited to one underlying connection. The
// busy_timeout pragma is ordered first so it is active before
// journal_mode(WAL), which may itself return SQLITE_BUSY if another handle
// holds a write lock during connection setup.
func openHandle(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, busyTimeoutMs,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection per pooled handle: the striped pool does the pooling,
	// database/sql must not layer its own on top.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck,gosec // best-effort cleanup on ping failure
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	return db, nil
}

// initSchema runs cfg.InitSchema under an exclusive cross-process file lock.
// Lock acquisition respects the context and retries at initLockRetryInterval.
// The lock file is intentionally left on disk: removing it could invalidate
// a lock concurrently acquired by another process.
func initSchema(ctx context.Context, cfg Config) error {
	fl := flock.New(cfg.Path + ".init.lock")

	locked, err := fl.TryLockContext(ctx, initLockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring init lock %s: %w", fl.Path(), err)
	}
	if !locked {
		// Defensive: TryLockContext should return an error when it fails,
		// but handle the case where it returns (false, nil) unexpectedly.
		if ctx.Err() != nil {
			return fmt.Errorf("acquiring init lock %s: %w", fl.Path(), ctx.Err())
		}
		return fmt.Errorf("acquiring init lock %s: lock not acquired", fl.Path())
	}
	// Close releases the lock and the descriptor; errors are logged only,
	// the lock dies with the process either way.
	defer func() {
		if closeErr := fl.Close(); closeErr != nil {
			core.Logger().Debug("failed to release init lock", "path", fl.Path(), "err", closeErr)
		}
	}()

	db, err := openHandle(ctx, cfg.Path)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck,gosec // best-effort close of the init handle

	if _, err := db.ExecContext(ctx, cfg.InitSchema); err != nil {
		return fmt.Errorf("apply init schema: %w", err)
	}

	return nil
}
