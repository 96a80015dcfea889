// Package store is the append-only event store (C1): per-stream monotonic
// sequencing, snapshot slots, and the puzzle/solve tables that the
// catalog and solve services share the same database with.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/gridwire/internal/gridwire/store/migrations"
	"github.com/louisbranch/gridwire/internal/platform/storage/sqlitemigrate"
)

// Store wraps a SQLite-backed connection implementing the event store,
// snapshot slot, and puzzle/solve tables described by the relational
// schema.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and applies
// embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

// DB exposes the underlying connection pool so collaborating components
// (the solve service, the catalog) can share the same database file and
// participate in the same transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// withRetryableTx runs fn inside a transaction, retrying with exponential
// backoff when fn reports a sequence-number conflict (isConstraintError).
// Base delay ~10ms, capped at 5 attempts per the serialized next-seq
// strategy (spec §4.1).
func (s *Store) withRetryableTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const maxAttempts = 5
	const baseDelay = 10 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		err = fn(tx)
		if err == nil {
			if commitErr := tx.Commit(); commitErr != nil {
				return fmt.Errorf("commit transaction: %w", commitErr)
			}
			return nil
		}

		_ = tx.Rollback()
		lastErr = err
		if !isConstraintError(err) {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}
