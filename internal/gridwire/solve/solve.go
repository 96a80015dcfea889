// Package solve is the solve recording service (C4): turns a client's
// "I finished this puzzle" claim into a durable, idempotent solve record
// and bumps the puzzle's solve counter in the same transaction.
package solve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/platform/apperr"
	"github.com/louisbranch/gridwire/internal/platform/timeouts"
)

// Store is the subset of the event store the solve service reads from to
// reconstruct reveal/check activity for a game.
type Store interface {
	Read(ctx context.Context, kind event.Kind, streamID string, fromSeq, toSeq int64) ([]event.Record, error)
	DB() *sql.DB
}

// Catalog is the subset of the puzzle catalog the solve service writes
// through, inside its own transaction.
type Catalog interface {
	IncrementSolveCount(ctx context.Context, tx *sql.Tx, pid string) error
}

// Record is a persisted solve.
type Record struct {
	Pid                   string
	GID                   string
	SolvedAt              time.Time
	TimeTakenSeconds      int
	RevealedSquaresCount  int
	CheckedSquaresCount   int
}

// Service records puzzle solves (spec §4.4).
type Service struct {
	store   Store
	catalog Catalog
}

// NewService builds a solve service over store and catalog, which must
// share the same underlying SQLite database file so RecordSolve's insert
// and the catalog's solve-count increment can commit atomically.
func NewService(store Store, catalog Catalog) *Service {
	return &Service{store: store, catalog: catalog}
}

// RecordSolve records that gid finished pid in timeToSolveSeconds. It is
// idempotent on (pid, gid) (I3): a repeat call for an already-solved game
// returns the existing record rather than erroring. The reveal/checked
// square counts are derived from the game's own event stream rather than
// trusted from the caller, so a client cannot under-report assistance used.
func (s *Service) RecordSolve(ctx context.Context, pid, gid string, timeToSolveSeconds int) (Record, error) {
	if timeToSolveSeconds <= 0 {
		return Record{}, apperr.New(apperr.CodeInvalidSolveTime, "time_to_solve_seconds must be positive")
	}

	readCtx, cancel := context.WithTimeout(ctx, timeouts.Store)
	records, err := s.store.Read(readCtx, event.KindGame, gid, 0, 0)
	cancel()
	if err != nil {
		return Record{}, fmt.Errorf("read game stream: %w", err)
	}
	revealed, checked, err := assistCounts(records)
	if err != nil {
		return Record{}, err
	}

	solvedAt := time.Now().UTC()

	var result Record
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, found, err := findSolve(ctx, tx, pid, gid)
		if err != nil {
			return err
		}
		if found {
			result = existing
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO puzzle_solves (pid, gid, solved_at, time_taken_seconds, revealed_squares_count, checked_squares_count)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			pid, gid, solvedAt.UnixMilli(), timeToSolveSeconds, revealed, checked,
		); err != nil {
			return err
		}
		if err := s.catalog.IncrementSolveCount(ctx, tx, pid); err != nil {
			return err
		}

		result = Record{
			Pid:                  pid,
			GID:                  gid,
			SolvedAt:             solvedAt,
			TimeTakenSeconds:     timeToSolveSeconds,
			RevealedSquaresCount: revealed,
			CheckedSquaresCount:  checked,
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			rereadCtx, cancel := context.WithTimeout(ctx, timeouts.Store)
			existing, found, readErr := findSolve(rereadCtx, s.store.DB(), pid, gid)
			cancel()
			if readErr != nil {
				return Record{}, fmt.Errorf("re-read solve after conflict: %w", readErr)
			}
			if found {
				return existing, nil
			}
			return Record{}, apperr.Wrap(apperr.CodeSolveConflict, "solve insert conflicted but no row found on re-read", err)
		}
		return Record{}, fmt.Errorf("record solve: %w", err)
	}

	return result, nil
}

func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, timeouts.Store)
	defer cancel()

	tx, err := s.store.DB().BeginTx(txCtx, nil)
	if err != nil {
		return fmt.Errorf("begin solve transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// querier covers both *sql.Tx and *sql.DB so findSolve can be reused from
// inside the insert transaction and from the post-conflict re-read.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findSolve(ctx context.Context, q querier, pid, gid string) (Record, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT solved_at, time_taken_seconds, revealed_squares_count, checked_squares_count
		 FROM puzzle_solves WHERE pid = ? AND gid = ?`,
		pid, gid,
	)
	var solvedAtMs int64
	var rec Record
	err := row.Scan(&solvedAtMs, &rec.TimeTakenSeconds, &rec.RevealedSquaresCount, &rec.CheckedSquaresCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("find solve: %w", err)
	}
	rec.Pid = pid
	rec.GID = gid
	rec.SolvedAt = time.UnixMilli(solvedAtMs).UTC()
	return rec, true, nil
}

// assistCounts derives the distinct cells touched by cell_check and
// cell_reveal events, mirroring the scope-expansion rule the projector
// uses when applying those same events (a bare row/col with no scope
// counts as a single-cell scope).
func assistCounts(records []event.Record) (revealed, checked int, err error) {
	revealedCells := make(map[[2]int]bool)
	checkedCells := make(map[[2]int]bool)

	for _, rec := range records {
		switch rec.Type {
		case event.TypeCellCheck:
			var p event.CellCheckPayload
			if err := json.Unmarshal(rec.Payload, &p); err != nil {
				return 0, 0, apperr.Wrap(apperr.CodeMissingPayloadField, "decode cell_check payload", err)
			}
			for _, cell := range solveScope(p.Row, p.Col, p.Scope) {
				checkedCells[[2]int{cell.Row, cell.Col}] = true
			}
		case event.TypeCellReveal:
			var p event.CellRevealPayload
			if err := json.Unmarshal(rec.Payload, &p); err != nil {
				return 0, 0, apperr.Wrap(apperr.CodeMissingPayloadField, "decode cell_reveal payload", err)
			}
			for _, cell := range solveScope(p.Row, p.Col, p.Scope) {
				revealedCells[[2]int{cell.Row, cell.Col}] = true
			}
		}
	}

	return len(revealedCells), len(checkedCells), nil
}

func solveScope(row, col int, scope []event.Cell) []event.Cell {
	if len(scope) > 0 {
		return scope
	}
	return []event.Cell{{Row: row, Col: col}}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
