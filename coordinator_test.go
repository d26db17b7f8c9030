package axe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"axe/event"
	"axe/sched"
)

// recordingReporter captures reported issues for assertions.
type recordingReporter struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingReporter) ReportIssue(message string, loc Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// eventRecorder collects published events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *eventRecorder) handle(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []event.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.EventType, len(r.events))
	for n, e := range r.events {
		out[n] = e.Type
	}
	return out
}

func newSingleCoordinator(t *testing.T, opts ...CoordinatorOption) *Coordinator {
	t.Helper()
	registry := NewRegistry()
	if err := RegisterStrategy(registry, NewSingleExecutionStrategy("single")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return NewCoordinator(append([]CoordinatorOption{WithRegistry(registry)}, opts...)...)
}

func TestCoordinator_AcquireAndUnlock(t *testing.T) {
	c := newSingleCoordinator(t)

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	if res := c.Acquire(context.Background(), "b", info); res.Kind() != KindSuccess {
		t.Fatalf("expected success, got %v", res)
	}

	if got := len(c.CurrentLocks("b")); got != 1 {
		t.Fatalf("expected 1 held entry, got %d", got)
	}

	c.Unlock(context.Background(), "b", info)
	if got := len(c.CurrentLocks("b")); got != 0 {
		t.Errorf("expected no held entries after unlock, got %d", got)
	}
}

func TestCoordinator_AcquireCancelRoutesToFailureHandler(t *testing.T) {
	var failures []error
	c := newSingleCoordinator(t, WithFailureHandler(func(boundaryID BoundaryID, info Info, err error) {
		failures = append(failures, err)
	}))

	held := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	c.Acquire(context.Background(), "b", held)

	rejected := NewSingleExecutionInfo("single", "save", ModePerBoundary)
	res := c.Acquire(context.Background(), "b", rejected)
	if res.Kind() != KindCancel {
		t.Fatalf("expected cancel, got %v", res)
	}

	if len(failures) != 1 || !errors.Is(failures[0], ErrBoundaryAlreadyLocked) {
		t.Errorf("expected the cancel reason routed to the failure handler, got %v", failures)
	}
}

func TestCoordinator_UnregisteredStrategyDegradesToUnguarded(t *testing.T) {
	reporter := &recordingReporter{}
	recorder := &eventRecorder{}
	bus := event.NewMemoryEventBus()
	_ = bus.SubscribeAll(recorder.handle)

	c := NewCoordinator(WithReporter(reporter), WithEventBus(bus))

	info := NewSingleExecutionInfo("missing", "fetch", ModePerBoundary)
	res := c.Acquire(context.Background(), "b", info)
	if res.Kind() != KindSuccess {
		t.Fatalf("expected unguarded success, got %v", res)
	}

	if reporter.count() != 1 {
		t.Fatalf("expected 1 reported issue, got %d", reporter.count())
	}
	if !strings.Contains(reporter.messages[0], "unguarded") {
		t.Errorf("expected an unguarded report, got %q", reporter.messages[0])
	}

	types := recorder.types()
	if len(types) != 1 || types[0] != event.EventLockUnguarded {
		t.Errorf("expected a single unguarded event, got %v", types)
	}

	// Nothing is tracked, so unlocking is a reported no-op too.
	c.Unlock(context.Background(), "b", info)
	if reporter.count() != 2 {
		t.Errorf("expected the unlock reported, got %d reports", reporter.count())
	}
}

func TestCoordinator_AcquirePublishesLifecycleEvents(t *testing.T) {
	recorder := &eventRecorder{}
	bus := event.NewMemoryEventBus()
	_ = bus.SubscribeAll(recorder.handle)

	c := newSingleCoordinator(t, WithEventBus(bus))

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	c.Acquire(context.Background(), "b", info)
	c.Acquire(context.Background(), "b", NewSingleExecutionInfo("single", "save", ModePerBoundary))
	c.Unlock(context.Background(), "b", info)

	want := []event.EventType{event.EventLockGranted, event.EventLockCancelled, event.EventLockReleased}
	got := recorder.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for n := range want {
		if got[n] != want[n] {
			t.Errorf("event %d: expected %s, got %s", n, want[n], got[n])
		}
	}

	recorder.mu.Lock()
	granted := recorder.events[0]
	recorder.mu.Unlock()
	if granted.Boundary != "b" || granted.Strategy != "single" || granted.Action != "fetch" {
		t.Errorf("unexpected granted event identity: %+v", granted)
	}
}

// Preempted entries are released inline, inside the same exclusive section as
// the grant, and surface as preempted events before the new grant's event.
func TestCoordinator_PreemptionReleasesInline(t *testing.T) {
	registry := NewRegistry()
	if err := RegisterStrategy(registry, NewPriorityBasedStrategy("priority")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	recorder := &eventRecorder{}
	bus := event.NewMemoryEventBus()
	_ = bus.SubscribeAll(recorder.handle)

	// A deliberately broken scheduler proves preemption never goes through it.
	c := NewCoordinator(WithRegistry(registry), WithEventBus(bus),
		WithScheduler(&failingScheduler{}))

	low := NewPriorityInfo("priority", "sync", PriorityLow(BehaviorExclusive))
	c.Acquire(context.Background(), "b", low)

	high := NewPriorityInfo("priority", "save", PriorityHigh(BehaviorExclusive))
	res := c.Acquire(context.Background(), "b", high)
	if res.Kind() != KindSuccessWithPrecedingCancellation {
		t.Fatalf("expected preceding cancellation, got %v", res)
	}

	want := []event.EventType{event.EventLockGranted, event.EventLockPreempted, event.EventLockGranted}
	got := recorder.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for n := range want {
		if got[n] != want[n] {
			t.Errorf("event %d: expected %s, got %s", n, want[n], got[n])
		}
	}
}

// failingScheduler rejects everything, forcing the inline fallback.
type failingScheduler struct{}

func (s *failingScheduler) Schedule(_ context.Context, _ sched.Policy, _ func()) error {
	return sched.ErrSchedulerClosed
}

func (s *failingScheduler) Close() error { return nil }

func TestCoordinator_UnlockFallsBackInline(t *testing.T) {
	c := newSingleCoordinator(t, WithScheduler(&failingScheduler{}))

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	c.Acquire(context.Background(), "b", info)

	// The scheduler rejects the release; it must still happen.
	c.Unlock(context.Background(), "b", info)
	if got := len(c.CurrentLocks("b")); got != 0 {
		t.Errorf("expected the release to run inline, got %d held entries", got)
	}
}

func TestCoordinator_UnlockEndOfTransition(t *testing.T) {
	c := newSingleCoordinator(t)

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	c.Acquire(context.Background(), "b", info)

	ctx, tr := sched.Begin(context.Background())
	c.Unlock(ctx, "b", info, sched.EndOfTransition())

	// Deferred until the transition ends.
	if got := len(c.CurrentLocks("b")); got != 1 {
		t.Fatalf("expected the entry held until the transition ends, got %d", got)
	}
	tr.End()
	if got := len(c.CurrentLocks("b")); got != 0 {
		t.Errorf("expected the entry released at end of transition, got %d", got)
	}
}

func TestCoordinator_ContextCancelledWaitingForBoundary(t *testing.T) {
	c := newSingleCoordinator(t)

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = c.WithBoundaryLock(context.Background(), "b", func(ctx context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Acquire(ctx, "b", NewSingleExecutionInfo("single", "fetch", ModePerBoundary))
	if res.Kind() != KindCancel || !errors.Is(res.Err(), context.Canceled) {
		t.Errorf("expected cancel carrying the context error, got %v", res)
	}
}

func TestCoordinator_CleanUp(t *testing.T) {
	recorder := &eventRecorder{}
	bus := event.NewMemoryEventBus()
	_ = bus.SubscribeAll(recorder.handle)

	c := newSingleCoordinator(t, WithEventBus(bus))

	c.Acquire(context.Background(), "one", NewSingleExecutionInfo("single", "a", ModePerBoundary))
	c.Acquire(context.Background(), "two", NewSingleExecutionInfo("single", "b", ModePerBoundary))

	c.CleanUpBoundary(context.Background(), "one")
	if got := len(c.CurrentLocks("one")); got != 0 {
		t.Errorf("expected boundary 'one' cleared, got %d entries", got)
	}
	if got := len(c.CurrentLocks("two")); got != 1 {
		t.Errorf("expected boundary 'two' untouched, got %d entries", got)
	}

	c.CleanUp(context.Background())
	if got := len(c.CurrentLocks("two")); got != 0 {
		t.Errorf("expected all state dropped, got %d entries", got)
	}

	types := recorder.types()
	sawBoundary, sawAll := false, false
	for _, tp := range types {
		switch tp {
		case event.EventCleanupBoundary:
			sawBoundary = true
		case event.EventCleanupAll:
			sawAll = true
		}
	}
	if !sawBoundary || !sawAll {
		t.Errorf("expected cleanup events published, got %v", types)
	}
}

func TestCoordinator_CanLockNeverMutates(t *testing.T) {
	c := newSingleCoordinator(t)

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	for n := 0; n < 3; n++ {
		if res := c.CanLock(context.Background(), "b", info); !res.Granted() {
			t.Fatalf("expected repeated CanLock granted, got %v", res)
		}
	}
	if got := len(c.CurrentLocks("b")); got != 0 {
		t.Errorf("expected CanLock to record nothing, got %d entries", got)
	}
}
