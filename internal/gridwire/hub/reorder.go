package hub

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/platform/timeouts"
)

// GapFiller reads a bounded range of a stream from the event store,
// used to close a reorder gap that outlasts the reorder window.
type GapFiller func(ctx context.Context, kind event.Kind, id string, fromSeq, toSeq int64) ([]event.Record, error)

// Reorderer absorbs minor out-of-order delivery of bus-sourced events for
// one stream (spec §4.3): the event at the expected seq is delivered
// immediately, events below it are dropped as duplicates, events ahead
// of it are buffered for up to
// timeouts.ReorderWindow, after which a gap-fill read from the store
// closes the hole.
type Reorderer struct {
	mu       sync.Mutex
	kind     event.Kind
	id       string
	expected int64
	buffer   map[int64]event.Record
	timer    *time.Timer
	deliver  func(event.Record)
	gapFill  GapFiller
}

// NewReorderer constructs a reorderer that expects the next delivered
// record to have seq startSeq+1.
func NewReorderer(kind event.Kind, id string, startSeq int64, deliver func(event.Record), gapFill GapFiller) *Reorderer {
	return &Reorderer{
		kind:     kind,
		id:       id,
		expected: startSeq + 1,
		buffer:   make(map[int64]event.Record),
		deliver:  deliver,
		gapFill:  gapFill,
	}
}

// Receive processes a bus-sourced record, delivering it (and any buffered
// records it unblocks) in seq order, or buffering it if it arrived ahead
// of the expected seq.
func (r *Reorderer) Receive(ctx context.Context, rec event.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Seq < r.expected {
		return // duplicate or already delivered
	}
	if rec.Seq > r.expected {
		r.buffer[rec.Seq] = rec
		r.armTimer(ctx)
		return
	}

	r.deliverLocked(rec)
	r.drainLocked()
	r.rearmOrClearLocked(ctx)
}

func (r *Reorderer) deliverLocked(rec event.Record) {
	r.deliver(rec)
	r.expected = rec.Seq + 1
}

func (r *Reorderer) drainLocked() {
	for {
		next, ok := r.buffer[r.expected]
		if !ok {
			return
		}
		delete(r.buffer, r.expected)
		r.deliverLocked(next)
	}
}

func (r *Reorderer) armTimer(ctx context.Context) {
	if r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(timeouts.ReorderWindow, func() { r.onTimeout(ctx) })
}

func (r *Reorderer) rearmOrClearLocked(ctx context.Context) {
	if len(r.buffer) == 0 {
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		return
	}
	if r.timer == nil {
		r.armTimer(ctx)
	}
}

func (r *Reorderer) onTimeout(ctx context.Context) {
	r.mu.Lock()
	r.timer = nil
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}

	seqs := make([]int64, 0, len(r.buffer))
	for seq := range r.buffer {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	gapEnd := seqs[0] - 1
	fromSeq := r.expected
	kind, id := r.kind, r.id
	r.mu.Unlock()

	if gapEnd < fromSeq {
		r.mu.Lock()
		r.drainLocked()
		r.rearmOrClearLocked(ctx)
		r.mu.Unlock()
		return
	}

	filled, err := r.gapFill(ctx, kind, id, fromSeq, gapEnd)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		for _, rec := range filled {
			if rec.Seq == r.expected {
				r.deliverLocked(rec)
			}
		}
	}
	r.drainLocked()
	r.rearmOrClearLocked(ctx)
}
