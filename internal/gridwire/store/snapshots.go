package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
)

// Snapshot is a cached projection at a known seq (I2): an optimization
// only, never load-bearing for correctness.
type Snapshot struct {
	StreamID    string
	Data        []byte
	SnapshotSeq int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func snapshotsTable(kind event.Kind) (table, idColumn string, err error) {
	switch kind {
	case event.KindGame:
		return "game_snapshots", "gid", nil
	case event.KindRoom:
		return "room_snapshots", "rid", nil
	default:
		return "", "", fmt.Errorf("unknown stream kind %q", kind)
	}
}

// GetSnapshot returns the stream's snapshot slot, or nil if none exists.
func (s *Store) GetSnapshot(ctx context.Context, kind event.Kind, streamID string) (*Snapshot, error) {
	table, idColumn, err := snapshotsTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT data, snapshot_seq, created_at, updated_at FROM %s WHERE %s = ?`, table, idColumn)
	row := s.db.QueryRowContext(ctx, query, streamID)

	var snap Snapshot
	var createdMs, updatedMs int64
	if err := row.Scan(&snap.Data, &snap.SnapshotSeq, &createdMs, &updatedMs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	snap.StreamID = streamID
	snap.CreatedAt = fromMillis(createdMs)
	snap.UpdatedAt = fromMillis(updatedMs)
	return &snap, nil
}

// UpsertSnapshot overwrites the stream's snapshot slot. One-writer-wins:
// a stale overwrite just wastes a future replay, never corrupts state.
func (s *Store) UpsertSnapshot(ctx context.Context, kind event.Kind, streamID string, data []byte, snapshotSeq int64) error {
	table, idColumn, err := snapshotsTable(kind)
	if err != nil {
		return err
	}

	now := toMillis(time.Now())
	query := fmt.Sprintf(`
INSERT INTO %s (%s, data, snapshot_seq, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(%s) DO UPDATE SET data = excluded.data, snapshot_seq = excluded.snapshot_seq, updated_at = excluded.updated_at
`, table, idColumn, idColumn)

	if _, err := s.db.ExecContext(ctx, query, streamID, data, snapshotSeq, now, now); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
