package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/platform/apperr"
)

func eventsTable(kind event.Kind) (table, idColumn string, err error) {
	switch kind {
	case event.KindGame:
		return "game_events", "gid", nil
	case event.KindRoom:
		return "room_events", "rid", nil
	default:
		return "", "", apperr.New(apperr.CodeInvalidStreamKind, fmt.Sprintf("unknown stream kind %q", kind))
	}
}

// Append persists draft as the next event on its stream, assigning a seq
// under the serialized next-seq strategy (spec §4.1): read-then-increment
// the stream's counter inside a transaction, insert, and rely on the
// UNIQUE(stream_id, seq) index as the correctness backstop. On a
// constraint violation the whole transaction is retried with exponential
// backoff; exhausting retries surfaces an apperr.Error with
// apperr.CodeSeqConflict.
func (s *Store) Append(ctx context.Context, draft event.Draft, ts time.Time, schemaVersion int) (event.Record, error) {
	table, idColumn, err := eventsTable(draft.StreamKind)
	if err != nil {
		return event.Record{}, err
	}
	if !draft.Type.IsValid() || !draft.Type.ValidFor(draft.StreamKind) {
		return event.Record{}, apperr.New(apperr.CodeInvalidEventType, fmt.Sprintf("event type %q is not valid for stream kind %q", draft.Type, draft.StreamKind))
	}

	if schemaVersion <= 0 {
		schemaVersion = event.SchemaVersion
	}
	tsMillis := toMillis(ts)

	var record event.Record
	err = s.withRetryableTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_seq (stream_kind, stream_id, next_seq) VALUES (?, ?, 1)
			 ON CONFLICT(stream_kind, stream_id) DO NOTHING`,
			draft.StreamKind, draft.StreamID,
		); err != nil {
			return fmt.Errorf("init event seq: %w", err)
		}

		var nextSeq int64
		row := tx.QueryRowContext(ctx,
			`SELECT next_seq FROM event_seq WHERE stream_kind = ? AND stream_id = ?`,
			draft.StreamKind, draft.StreamID,
		)
		if err := row.Scan(&nextSeq); err != nil {
			return fmt.Errorf("get event seq: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE event_seq SET next_seq = next_seq + 1 WHERE stream_kind = ? AND stream_id = ?`,
			draft.StreamKind, draft.StreamID,
		); err != nil {
			return fmt.Errorf("increment event seq: %w", err)
		}

		insertSQL := fmt.Sprintf(
			`INSERT INTO %s (%s, seq, event_type, payload, user_id, ts, version) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			table, idColumn,
		)
		if _, err := tx.ExecContext(ctx, insertSQL,
			draft.StreamID, nextSeq, string(draft.Type), draft.Payload, draft.UserID, tsMillis, schemaVersion,
		); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		record = event.Record{
			StreamKind:    draft.StreamKind,
			StreamID:      draft.StreamID,
			Seq:           nextSeq,
			Type:          draft.Type,
			Payload:       draft.Payload,
			UserID:        draft.UserID,
			TimestampMs:   tsMillis,
			SchemaVersion: schemaVersion,
		}
		return nil
	})
	if err != nil {
		if isBusyError(err) {
			return event.Record{}, apperr.Wrap(apperr.CodeStoreUnavailable, "event store is busy", err)
		}
		return event.Record{}, apperr.Wrap(apperr.CodeSeqConflict, "failed to append event after retries", err)
	}

	return record, nil
}

// Read returns the events of a stream with seq in [fromSeq, toSeq], in
// ascending seq order. A zero fromSeq/toSeq means unbounded on that side.
func (s *Store) Read(ctx context.Context, kind event.Kind, streamID string, fromSeq, toSeq int64) ([]event.Record, error) {
	table, idColumn, err := eventsTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT seq, event_type, payload, user_id, ts, version FROM %s WHERE %s = ? AND seq >= ? AND (? = 0 OR seq <= ?) ORDER BY seq ASC`,
		table, idColumn,
	)
	if fromSeq <= 0 {
		fromSeq = 1
	}
	rows, err := s.db.QueryContext(ctx, query, streamID, fromSeq, toSeq, toSeq)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStoreUnavailable, "failed to read stream", err)
	}
	defer rows.Close()

	var records []event.Record
	for rows.Next() {
		var r event.Record
		var eventType string
		if err := rows.Scan(&r.Seq, &eventType, &r.Payload, &r.UserID, &r.TimestampMs, &r.SchemaVersion); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		r.StreamKind = kind
		r.StreamID = streamID
		r.Type = event.Type(eventType)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return records, nil
}

// LatestSeq returns the highest persisted seq for the stream, 0 if empty.
func (s *Store) LatestSeq(ctx context.Context, kind event.Kind, streamID string) (int64, error) {
	table, idColumn, err := eventsTable(kind)
	if err != nil {
		return 0, err
	}

	var seq sql.NullInt64
	query := fmt.Sprintf(`SELECT MAX(seq) FROM %s WHERE %s = ?`, table, idColumn)
	row := s.db.QueryRowContext(ctx, query, streamID)
	if err := row.Scan(&seq); err != nil {
		return 0, apperr.Wrap(apperr.CodeStoreUnavailable, "failed to read latest seq", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
