package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridwire.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return s
}

func TestAppendAssignsContiguousSeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		draft := event.Draft{
			StreamKind: event.KindGame,
			StreamID:   "g1",
			Type:       event.TypeCellFill,
			Payload:    []byte(`{"row":0,"col":0,"value":"A"}`),
		}
		rec, err := s.Append(ctx, draft, time.Now(), 1)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if rec.Seq != int64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, rec.Seq)
		}
	}

	records, err := s.Read(ctx, event.KindGame, "g1", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Seq != int64(i+1) {
			t.Fatalf("record %d has seq %d, want %d", i, r.Seq, i+1)
		}
	}
}

// TestAppendConcurrentIsContiguous exercises scenario 2: 100 concurrent
// appenders must land exactly on seq 1..100 with no gaps or duplicates.
func TestAppendConcurrentIsContiguous(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			draft := event.Draft{
				StreamKind: event.KindGame,
				StreamID:   "g2",
				Type:       event.TypeCellFill,
				Payload:    []byte(`{"row":0,"col":0,"value":"A"}`),
			}
			if _, err := s.Append(ctx, draft, time.Now(), 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append failed: %v", err)
	}

	records, err := s.Read(ctx, event.KindGame, "g2", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
	seen := map[int64]bool{}
	for _, r := range records {
		if seen[r.Seq] {
			t.Fatalf("duplicate seq %d", r.Seq)
		}
		seen[r.Seq] = true
	}
	for i := int64(1); i <= int64(n); i++ {
		if !seen[i] {
			t.Fatalf("missing seq %d", i)
		}
	}
}

func TestAppendRejectsInvalidTypeForKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	draft := event.Draft{
		StreamKind: event.KindRoom,
		StreamID:   "r1",
		Type:       event.TypeCellFill,
		Payload:    []byte(`{}`),
	}
	if _, err := s.Append(ctx, draft, time.Now(), 1); err == nil {
		t.Fatal("expected error for game-only event type on a room stream")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if snap, err := s.GetSnapshot(ctx, event.KindGame, "g3"); err != nil || snap != nil {
		t.Fatalf("expected no snapshot, got %v, err %v", snap, err)
	}

	if err := s.UpsertSnapshot(ctx, event.KindGame, "g3", []byte(`{"solved":false}`), 4); err != nil {
		t.Fatalf("upsert snapshot: %v", err)
	}

	snap, err := s.GetSnapshot(ctx, event.KindGame, "g3")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.SnapshotSeq != 4 {
		t.Fatalf("expected snapshot_seq 4, got %d", snap.SnapshotSeq)
	}

	if err := s.UpsertSnapshot(ctx, event.KindGame, "g3", []byte(`{"solved":true}`), 10); err != nil {
		t.Fatalf("upsert snapshot again: %v", err)
	}
	snap, err = s.GetSnapshot(ctx, event.KindGame, "g3")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if snap.SnapshotSeq != 10 {
		t.Fatalf("expected overwritten snapshot_seq 10, got %d", snap.SnapshotSeq)
	}
}

func TestReadBoundedRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		draft := event.Draft{
			StreamKind: event.KindRoom,
			StreamID:   "r2",
			Type:       event.TypeUserJoin,
			Payload:    []byte(`{"user_id":"u1"}`),
		}
		if _, err := s.Append(ctx, draft, time.Now(), 1); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := s.Read(ctx, event.KindRoom, "r2", 3, 6)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0].Seq != 3 || records[len(records)-1].Seq != 6 {
		t.Fatalf("unexpected bounds: first=%d last=%d", records[0].Seq, records[len(records)-1].Seq)
	}
}
