package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

// Envelope wraps a lifecycle event with bus-assigned metadata.
type Envelope struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Event is the lifecycle event payload.
	Event lifecycle.Event `json:"event"`
}

// Subscriber receives published events. Subscribers run on the bus's
// dispatch goroutine and should return quickly.
type Subscriber func(envelope Envelope)

// EventBus is a buffered, in-process publisher of lifecycle events. It
// implements lifecycle.EventPublisher: Publish never blocks the
// orchestration pipeline longer than the configured publish timeout;
// events beyond that are dropped.
type EventBus struct {
	config EventsConfig

	// mu protects the subscriber list.
	mu          sync.RWMutex
	subscribers []Subscriber

	buffer  chan Envelope
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
	closeMu sync.Mutex

	// dropped counts events discarded because the buffer was full.
	dropped int64
	dropMu  sync.Mutex
}

// NewEventBus creates and starts an event bus.
func NewEventBus(cfg EventsConfig) *EventBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 100 * time.Millisecond
	}

	bus := &EventBus{
		config: cfg,
		buffer: make(chan Envelope, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Subscribe registers a subscriber for all subsequently published events.
func (b *EventBus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish implements lifecycle.EventPublisher.
func (b *EventBus) Publish(_ context.Context, event lifecycle.Event) {
	envelope := Envelope{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Event:     event,
	}

	timer := time.NewTimer(b.config.PublishTimeout)
	defer timer.Stop()

	select {
	case b.buffer <- envelope:
	case <-b.done:
	case <-timer.C:
		b.dropMu.Lock()
		b.dropped++
		b.dropMu.Unlock()
	}
}

// Dropped returns the number of events discarded so far.
func (b *EventBus) Dropped() int64 {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped
}

// Close drains buffered events and stops the dispatch loop.
func (b *EventBus) Close() {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	b.wg.Wait()
}

func (b *EventBus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case envelope := <-b.buffer:
			b.deliver(envelope)
		case <-b.done:
			// Drain what is already buffered before exiting.
			for {
				select {
				case envelope := <-b.buffer:
					b.deliver(envelope)
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) deliver(envelope Envelope) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(envelope)
	}
}
