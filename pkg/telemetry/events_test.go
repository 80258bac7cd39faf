package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

func TestEventBusDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus(EventsConfig{BufferSize: 8})

	var mu sync.Mutex
	var received []Envelope
	bus.Subscribe(func(envelope Envelope) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, envelope)
	})

	events := []lifecycle.Event{
		{Type: lifecycle.EventTypeOperationStarted, Operation: lifecycle.OperationInstall, Message: "Operation started"},
		{Type: lifecycle.EventTypeHookReady, Phase: lifecycle.PhasePreInstall, Hook: "db-migrate", Message: "Hook ready"},
		{Type: lifecycle.EventTypeOperationCompleted, Operation: lifecycle.OperationInstall, Message: "Operation completed"},
	}
	for _, event := range events {
		bus.Publish(context.Background(), event)
	}

	// Close drains the buffer before returning.
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("Expected 3 delivered events, got %d", len(received))
	}
	for i, envelope := range received {
		if envelope.Event.Type != events[i].Type {
			t.Errorf("Expected event %d type %q, got %q", i, events[i].Type, envelope.Event.Type)
		}
		if envelope.ID == "" {
			t.Errorf("Expected envelope %d to carry an ID", i)
		}
		if envelope.Timestamp.IsZero() {
			t.Errorf("Expected envelope %d to carry a timestamp", i)
		}
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(EventsConfig{BufferSize: 4})

	var mu sync.Mutex
	counts := make([]int, 2)
	for i := 0; i < 2; i++ {
		idx := i
		bus.Subscribe(func(Envelope) {
			mu.Lock()
			defer mu.Unlock()
			counts[idx]++
		})
	}

	bus.Publish(context.Background(), lifecycle.Event{Type: lifecycle.EventTypePhaseStarted})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if counts[0] != 1 || counts[1] != 1 {
		t.Errorf("Expected both subscribers to receive the event, got %v", counts)
	}
}

func TestEventBusDropsWhenSaturated(t *testing.T) {
	bus := NewEventBus(EventsConfig{
		BufferSize:     1,
		PublishTimeout: 5 * time.Millisecond,
	})

	release := make(chan struct{})
	bus.Subscribe(func(Envelope) {
		<-release
	})

	// The first event occupies the dispatch goroutine, the second fills
	// the buffer, later ones have nowhere to go.
	for i := 0; i < 4; i++ {
		bus.Publish(context.Background(), lifecycle.Event{Type: lifecycle.EventTypeHookSubmitted})
	}

	if bus.Dropped() == 0 {
		t.Error("Expected saturated bus to drop events")
	}

	close(release)
	bus.Close()
}

func TestEventBusCloseIsIdempotent(t *testing.T) {
	bus := NewEventBus(EventsConfig{})
	bus.Close()
	bus.Close()

	// Publishing after close must not block forever.
	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), lifecycle.Event{Type: lifecycle.EventTypePhaseStarted})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected publish after close to return promptly")
	}
}
