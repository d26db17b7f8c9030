package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Event construction
// ============================================================================

func TestNewEvent(t *testing.T) {
	before := time.Now()
	e := NewEvent(EventLockGranted).
		WithBoundary("b").
		WithStrategy("single").
		WithAction("fetch").
		WithUniqueID("uid-1").
		WithData("key", "value")

	if e.Type != EventLockGranted {
		t.Errorf("expected type %s, got %s", EventLockGranted, e.Type)
	}
	if e.Boundary != "b" || e.Strategy != "single" || e.Action != "fetch" || e.UniqueID != "uid-1" {
		t.Errorf("unexpected identity: %+v", e)
	}
	if e.Timestamp.Before(before) {
		t.Error("expected the timestamp set at construction")
	}
	if e.Data["key"] != "value" {
		t.Errorf("expected data set, got %v", e.Data)
	}

	failErr := errors.New("boom")
	if got := e.WithError(failErr).Error; got != failErr {
		t.Errorf("expected error set, got %v", got)
	}
}

// ============================================================================
// Memory bus
// ============================================================================

func TestMemoryEventBus_TypedSubscription(t *testing.T) {
	bus := NewMemoryEventBus()

	var mu sync.Mutex
	var received []Event
	err := bus.Subscribe(EventLockGranted, func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	_ = bus.Publish(context.Background(), NewEvent(EventLockGranted).WithBoundary("b"))
	_ = bus.Publish(context.Background(), NewEvent(EventLockReleased).WithBoundary("b"))

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected only the granted event delivered, got %d", len(received))
	}
	if received[0].Boundary != "b" {
		t.Errorf("expected boundary 'b', got %q", received[0].Boundary)
	}
}

func TestMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := NewMemoryEventBus()

	count := 0
	_ = bus.SubscribeAll(func(ctx context.Context, e Event) error {
		count++
		return nil
	})

	_ = bus.Publish(context.Background(), NewEvent(EventLockGranted))
	_ = bus.Publish(context.Background(), NewEvent(EventCleanupAll))

	if count != 2 {
		t.Errorf("expected all events delivered, got %d", count)
	}
	if bus.AllHandlerCount() != 1 {
		t.Errorf("expected 1 all-handler, got %d", bus.AllHandlerCount())
	}
}

func TestMemoryEventBus_HandlerErrorsDoNotPropagate(t *testing.T) {
	bus := NewMemoryEventBus(WithLogger(&silentLogger{}))

	_ = bus.Subscribe(EventLockGranted, func(ctx context.Context, e Event) error {
		return errors.New("handler failure")
	})
	_ = bus.Subscribe(EventLockGranted, func(ctx context.Context, e Event) error {
		panic("handler panic")
	})

	delivered := false
	_ = bus.SubscribeAll(func(ctx context.Context, e Event) error {
		delivered = true
		return nil
	})

	if err := bus.Publish(context.Background(), NewEvent(EventLockGranted)); err != nil {
		t.Errorf("expected publish to succeed despite handler failures, got %v", err)
	}
	if !delivered {
		t.Error("expected later handlers to still run")
	}
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryEventBus()

	_ = bus.Subscribe(EventLockGranted, func(ctx context.Context, e Event) error { return nil })
	_ = bus.Subscribe(EventLockGranted, func(ctx context.Context, e Event) error { return nil })
	if bus.HandlerCount(EventLockGranted) != 2 {
		t.Fatalf("expected 2 handlers, got %d", bus.HandlerCount(EventLockGranted))
	}

	bus.Unsubscribe(EventLockGranted)
	if bus.HandlerCount(EventLockGranted) != 0 {
		t.Errorf("expected handlers removed, got %d", bus.HandlerCount(EventLockGranted))
	}

	_ = bus.SubscribeAll(func(ctx context.Context, e Event) error { return nil })
	bus.UnsubscribeAll()
	if bus.AllHandlerCount() != 0 {
		t.Errorf("expected all handlers removed, got %d", bus.AllHandlerCount())
	}
}

func TestNoOpEventBus(t *testing.T) {
	bus := NewNoOpEventBus()
	if err := bus.Publish(context.Background(), NewEvent(EventLockGranted)); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := bus.Subscribe(EventLockGranted, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := bus.SubscribeAll(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

type silentLogger struct{}

func (silentLogger) Printf(format string, v ...any) {}
