// Package hub is the real-time fan-out layer (C3): an in-process registry
// of subscribers per stream, a persist-then-broadcast publish pipeline,
// and a cross-instance bus adapter.
package hub

import (
	"context"
	"sync"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
)

// SubscriberBufferSize bounds each subscriber's outbound queue (spec §5).
const SubscriberBufferSize = 1024

// streamKey identifies a stream for the subscriber registry, matching the
// bus channel naming scheme `${kind}:${id}` (spec §4.3/§6).
func streamKey(kind event.Kind, id string) string {
	return string(kind) + ":" + id
}

type subscriber struct {
	id     int64
	stream chan event.Record
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.stream) })
}

// Registry is the per-instance subscriber map. Writes are guarded by a
// small critical section; fan-out snapshots the subscriber set and
// releases the lock before delivering, so a slow or blocked subscriber
// cannot stall registration for others (spec §4.3).
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

// NewRegistry constructs an empty subscriber registry using the default
// buffer size.
func NewRegistry() *Registry {
	return NewRegistryWithBuffer(SubscriberBufferSize)
}

// NewRegistryWithBuffer constructs an empty subscriber registry whose
// subscriber queues hold bufferSize records before the registry drops the
// subscriber (spec §4.3, §5). A non-positive bufferSize falls back to
// SubscriberBufferSize.
func NewRegistryWithBuffer(bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = SubscriberBufferSize
	}
	return &Registry{subscribers: make(map[string]map[int64]*subscriber), bufferSize: bufferSize}
}

// Subscribe registers a subscriber for a stream and returns its receive
// channel plus a cleanup func. The subscriber is automatically dropped
// when ctx is canceled.
func (r *Registry) Subscribe(ctx context.Context, kind event.Kind, id string) (<-chan event.Record, func()) {
	key := streamKey(kind, id)
	sub := &subscriber{
		id:     r.nextSeq(),
		stream: make(chan event.Record, r.bufferSize),
	}

	r.mu.Lock()
	if r.subscribers[key] == nil {
		r.subscribers[key] = make(map[int64]*subscriber)
	}
	r.subscribers[key][sub.id] = sub
	r.mu.Unlock()

	cleanup := func() { r.unregister(key, sub) }
	go func() {
		<-ctx.Done()
		cleanup()
	}()

	return sub.stream, cleanup
}

// Publish delivers rec to every subscriber of (kind, id). Delivery is
// non-blocking per subscriber; a subscriber whose queue is full is
// dropped (its connection closed) rather than allowed to back up the
// others (spec §4.3, §7 SubscriberBackpressure).
func (r *Registry) Publish(kind event.Kind, id string, rec event.Record) {
	key := streamKey(kind, id)

	r.mu.RLock()
	subs := r.subscribers[key]
	copies := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	r.mu.RUnlock()

	var overflowed []*subscriber
	for _, sub := range copies {
		select {
		case sub.stream <- rec:
		default:
			overflowed = append(overflowed, sub)
		}
	}

	for _, sub := range overflowed {
		r.unregister(key, sub)
		sub.close()
	}
}

func (r *Registry) unregister(key string, sub *subscriber) {
	r.mu.Lock()
	subs := r.subscribers[key]
	if subs != nil {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(r.subscribers, key)
		}
	}
	r.mu.Unlock()
}

func (r *Registry) nextSeq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// SubscriberCount reports how many subscribers a stream currently has.
// Test/observability helper, not part of the core delivery contract.
func (r *Registry) SubscriberCount(kind event.Kind, id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[streamKey(kind, id)])
}
