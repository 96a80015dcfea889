package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/platform/apperr"
	"github.com/louisbranch/gridwire/internal/platform/timeouts"
)

// Store is the C1 capability the hub depends on: append with sequencing,
// ordered reads for sync and gap-fill, and a cheap seq lookup for seeding
// a new stream's reorder buffer.
type Store interface {
	Append(ctx context.Context, draft event.Draft, ts time.Time, schemaVersion int) (event.Record, error)
	Read(ctx context.Context, kind event.Kind, streamID string, fromSeq, toSeq int64) ([]event.Record, error)
	LatestSeq(ctx context.Context, kind event.Kind, streamID string) (int64, error)
}

// Service wires the subscriber registry, event store, and cross-instance
// bus into the publish/sync pipeline described by spec §4.3.
type Service struct {
	store    Store
	bus      Bus
	registry *Registry
	originID string

	mu        sync.Mutex
	consuming map[string]bool
}

// NewService constructs a hub service with the default subscriber buffer
// size. bus may be nil: cross-instance distribution is then a no-op and
// single-instance correctness is unaffected (spec §4.3 failure modes).
func NewService(store Store, bus Bus) *Service {
	return NewServiceWithBuffer(store, bus, SubscriberBufferSize)
}

// NewServiceWithBuffer constructs a hub service whose subscriber queues
// hold bufferSize records (spec §5).
func NewServiceWithBuffer(store Store, bus Bus, bufferSize int) *Service {
	return &Service{
		store:     store,
		bus:       bus,
		registry:  NewRegistryWithBuffer(bufferSize),
		originID:  uuid.NewString(),
		consuming: make(map[string]bool),
	}
}

// Subscribe registers a local subscriber for a stream and, on first use,
// starts consuming the stream's bus channel so cross-instance events
// reach it too.
func (s *Service) Subscribe(ctx context.Context, kind event.Kind, id string) (<-chan event.Record, func()) {
	s.ensureBusConsumer(kind, id)
	return s.registry.Subscribe(ctx, kind, id)
}

// Publish normalizes the sentinel timestamp, persists the event, and
// fans it out locally and across the bus. Never broadcasts without a
// successful persist first (spec §4.3, §7).
func (s *Service) Publish(ctx context.Context, draft event.Draft) (event.Record, error) {
	normalized, err := normalizeSentinels(draft.Payload, time.Now())
	if err != nil {
		return event.Record{}, apperr.Wrap(apperr.CodeMissingPayloadField, "malformed event payload", err)
	}
	draft.Payload = normalized

	storeCtx, cancel := context.WithTimeout(ctx, timeouts.Store)
	defer cancel()
	rec, err := s.store.Append(storeCtx, draft, time.Now(), event.SchemaVersion)
	if err != nil {
		return event.Record{}, err
	}

	s.registry.Publish(draft.StreamKind, draft.StreamID, rec)

	if s.bus != nil {
		channel := busChannel(draft.StreamKind, draft.StreamID)
		envelope := BusEnvelope{OriginID: s.originID, StreamKind: draft.StreamKind, StreamID: draft.StreamID, Record: rec}
		if err := s.bus.Publish(ctx, channel, envelope); err != nil {
			// best-effort cross-instance distribution; local delivery already succeeded.
			_ = err
		}
	}

	return rec, nil
}

// Sync reads the full stream from the store, in order, for reconnect
// state reconstruction (spec §4.3), capped at the spec §5 default of 30s
// for a full-stream replay.
func (s *Service) Sync(ctx context.Context, kind event.Kind, id string) ([]event.Record, error) {
	syncCtx, cancel := context.WithTimeout(ctx, timeouts.Sync)
	defer cancel()
	return s.store.Read(syncCtx, kind, id, 0, 0)
}

func busChannel(kind event.Kind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// ensureBusConsumer starts, at most once per stream, a goroutine that
// forwards non-echoed bus messages to local subscribers in persisted
// order via a per-stream Reorderer.
func (s *Service) ensureBusConsumer(kind event.Kind, id string) {
	if s.bus == nil {
		return
	}

	key := streamKey(kind, id)
	s.mu.Lock()
	if s.consuming[key] {
		s.mu.Unlock()
		return
	}
	s.consuming[key] = true
	s.mu.Unlock()

	ctx := context.Background()
	channel := busChannel(kind, id)
	envelopes, _, err := s.bus.Subscribe(ctx, channel)
	if err != nil {
		s.mu.Lock()
		delete(s.consuming, key)
		s.mu.Unlock()
		return
	}

	seqCtx, cancel := context.WithTimeout(ctx, timeouts.Store)
	lastSeq, _ := s.store.LatestSeq(seqCtx, kind, id)
	cancel()

	reorderer := NewReorderer(kind, id, lastSeq, func(rec event.Record) {
		s.registry.Publish(kind, id, rec)
	}, func(ctx context.Context, k event.Kind, streamID string, from, to int64) ([]event.Record, error) {
		gapCtx, cancel := context.WithTimeout(ctx, timeouts.Store)
		defer cancel()
		return s.store.Read(gapCtx, k, streamID, from, to)
	})

	go func() {
		for envelope := range envelopes {
			if envelope.OriginID == s.originID {
				continue // echo suppression
			}
			reorderer.Receive(ctx, envelope.Record)
		}
	}()
}

// normalizeSentinels replaces every occurrence of {".sv":"timestamp"}
// anywhere in the payload's JSON tree with now, expressed as epoch
// milliseconds (spec §6, §9).
func normalizeSentinels(payload []byte, now time.Time) ([]byte, error) {
	var tree any
	if err := json.Unmarshal(payload, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	replaced := replaceSentinel(tree, now.UnixMilli())

	out, err := json.Marshal(replaced)
	if err != nil {
		return nil, fmt.Errorf("marshal normalized payload: %w", err)
	}
	return out, nil
}

func replaceSentinel(node any, nowMs int64) any {
	switch v := node.(type) {
	case map[string]any:
		if len(v) == 1 {
			if sv, ok := v[".sv"]; ok && sv == "timestamp" {
				return nowMs
			}
		}
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = replaceSentinel(child, nowMs)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = replaceSentinel(child, nowMs)
		}
		return out
	default:
		return node
	}
}
