package projector

import (
	"context"
	"fmt"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
)

const replayPageSize = 200

// EventReader is the store capability the replayer needs: paginated reads
// of a stream's events. Satisfied by *store.Store.
type EventReader interface {
	Read(ctx context.Context, kind event.Kind, streamID string, fromSeq, toSeq int64) ([]event.Record, error)
}

// ReplayOptions bounds and filters a replay.
type ReplayOptions struct {
	AfterSeq int64
	UntilSeq int64
	Filter   func(event.Record) bool
}

// ReplayGame reads a game stream page by page from afterSeq and folds it
// into seed (nil for a fresh projection). Returns the resulting state and
// the last seq applied.
func ReplayGame(ctx context.Context, reader EventReader, gid string, seed *GameState, opts ReplayOptions) (*GameState, int64, error) {
	state := seed
	lastSeq := opts.AfterSeq

	for {
		page, err := reader.Read(ctx, event.KindGame, gid, lastSeq+1, lastSeq+replayPageSize)
		if err != nil {
			return nil, lastSeq, fmt.Errorf("read game page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		var toApply []event.Record
		done := false
		for _, rec := range page {
			if opts.UntilSeq > 0 && rec.Seq > opts.UntilSeq {
				done = true
				break
			}
			lastSeq = rec.Seq
			if opts.Filter != nil && !opts.Filter(rec) {
				continue
			}
			toApply = append(toApply, rec)
		}

		if len(toApply) > 0 {
			next, err := ProjectGameFrom(gid, state, toApply)
			if err != nil {
				return nil, lastSeq, err
			}
			state = next
		}

		if done || len(page) < replayPageSize {
			break
		}
	}

	return state, lastSeq, nil
}

// ReplayRoom is ReplayGame's counterpart for room streams.
func ReplayRoom(ctx context.Context, reader EventReader, rid string, seed *RoomState, opts ReplayOptions) (*RoomState, int64, error) {
	state := seed
	lastSeq := opts.AfterSeq

	for {
		page, err := reader.Read(ctx, event.KindRoom, rid, lastSeq+1, lastSeq+replayPageSize)
		if err != nil {
			return nil, lastSeq, fmt.Errorf("read room page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		var toApply []event.Record
		done := false
		for _, rec := range page {
			if opts.UntilSeq > 0 && rec.Seq > opts.UntilSeq {
				done = true
				break
			}
			lastSeq = rec.Seq
			if opts.Filter != nil && !opts.Filter(rec) {
				continue
			}
			toApply = append(toApply, rec)
		}

		if len(toApply) > 0 {
			next, err := ProjectRoomFrom(rid, state, toApply)
			if err != nil {
				return nil, lastSeq, err
			}
			state = next
		}

		if done || len(page) < replayPageSize {
			break
		}
	}

	return state, lastSeq, nil
}
