package hub

import (
	"context"
	"sync"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
)

// BusEnvelope is the message shape carried on the external pub/sub bus
// (spec §6): origin_id lets a receiving instance suppress echo of events
// it originated itself.
type BusEnvelope struct {
	OriginID   string
	StreamKind event.Kind
	StreamID   string
	Record     event.Record
}

// Bus is the cross-instance pub/sub contract (spec §6). No concrete
// broker client is wired in; callers inject an implementation (Redis,
// NATS, etc.) or fall back to single-instance correctness by leaving it
// unconfigured — the hub degrades gracefully per §4.3's failure modes.
type Bus interface {
	Publish(ctx context.Context, channel string, envelope BusEnvelope) error
	Subscribe(ctx context.Context, channel string) (<-chan BusEnvelope, func(), error)
}

// InMemoryBus is a same-process Bus implementation, useful for tests and
// single-instance deployments where cross-instance distribution is a
// no-op by construction.
type InMemoryBus struct {
	mu       sync.RWMutex
	channels map[string]map[int64]chan BusEnvelope
	nextID   int64
}

// NewInMemoryBus constructs an empty in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{channels: make(map[string]map[int64]chan BusEnvelope)}
}

// Publish fans envelope out to all current subscribers of channel,
// non-blocking per subscriber (a slow bus subscriber loses messages
// rather than stalling the publisher).
func (b *InMemoryBus) Publish(ctx context.Context, channel string, envelope BusEnvelope) error {
	b.mu.RLock()
	subs := b.channels[channel]
	copies := make([]chan BusEnvelope, 0, len(subs))
	for _, ch := range subs {
		copies = append(copies, ch)
	}
	b.mu.RUnlock()

	for _, ch := range copies {
		select {
		case ch <- envelope:
		default:
		}
	}
	return nil
}

// Subscribe registers a receiver for channel.
func (b *InMemoryBus) Subscribe(ctx context.Context, channel string) (<-chan BusEnvelope, func(), error) {
	b.mu.Lock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[int64]chan BusEnvelope)
	}
	b.nextID++
	id := b.nextID
	ch := make(chan BusEnvelope, SubscriberBufferSize)
	b.channels[channel][id] = ch
	b.mu.Unlock()

	cleanup := func() {
		b.mu.Lock()
		delete(b.channels[channel], id)
		if len(b.channels[channel]) == 0 {
			delete(b.channels, channel)
		}
		b.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		cleanup()
	}()

	return ch, cleanup, nil
}
