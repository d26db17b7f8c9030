package axe

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	"axe/event"
	"axe/sched"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEngine_DefaultsWork(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	if err := RegisterStrategy(engine.Registry(), NewSingleExecutionStrategy("single")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	if res := engine.Acquire(context.Background(), "b", info); !res.Granted() {
		t.Fatalf("expected success, got %v", res)
	}
	engine.Unlock(context.Background(), "b", info)

	if got := len(engine.CurrentLocks("b")); got != 0 {
		t.Errorf("expected no held entries, got %d", got)
	}

	// No event bus means no history.
	if engine.History() != nil {
		t.Error("expected nil history without an event bus")
	}
}

func TestEngine_HistoryAttachedWithBus(t *testing.T) {
	engine := NewEngine(
		WithEngineEventBus(event.NewMemoryEventBus()),
		WithEngineConfig(ApplyOptions(WithEventHistorySize(10))),
	)
	defer engine.Close()

	if err := RegisterStrategy(engine.Registry(), NewSingleExecutionStrategy("single")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	engine.Acquire(context.Background(), "b", info)
	engine.Unlock(context.Background(), "b", info)

	history := engine.History()
	if history == nil {
		t.Fatal("expected a history attached to the bus")
	}
	if got := history.Len(); got != 2 {
		t.Fatalf("expected 2 stored events, got %d", got)
	}
	if got := history.Count(event.Filter{Type: string(event.EventLockGranted)}); got != 1 {
		t.Errorf("expected 1 granted event, got %d", got)
	}

	// Newest first.
	stored := history.List(event.Filter{Boundary: "b"})
	if len(stored) != 2 || stored[0].Type != string(event.EventLockReleased) {
		t.Errorf("expected the release listed first, got %+v", stored)
	}
}

func TestEngine_HistoryDisabledByZeroSize(t *testing.T) {
	engine := NewEngine(
		WithEngineEventBus(event.NewMemoryEventBus()),
		WithEngineConfig(ApplyOptions(WithEventHistorySize(0))),
	)
	defer engine.Close()

	if engine.History() != nil {
		t.Error("expected history disabled at size zero")
	}
}

func TestEngine_DefaultUnlockPolicy(t *testing.T) {
	// End-of-transition as the process default: unlocks inside a transition
	// wait for it without a per-call policy.
	engine := NewEngine(WithEngineConfig(
		ApplyOptions(WithDefaultUnlockPolicy(sched.EndOfTransition()))))
	defer engine.Close()

	if err := RegisterStrategy(engine.Registry(), NewSingleExecutionStrategy("single")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	engine.Acquire(context.Background(), "b", info)

	ctx, tr := sched.Begin(context.Background())
	engine.Unlock(ctx, "b", info)
	if got := len(engine.CurrentLocks("b")); got != 1 {
		t.Fatalf("expected the entry held until the transition ends, got %d", got)
	}
	tr.End()
	if got := len(engine.CurrentLocks("b")); got != 0 {
		t.Errorf("expected the entry released, got %d", got)
	}
}

func TestEngine_RunLoopSchedulerShutsDownCleanly(t *testing.T) {
	engine := NewEngine(WithEngineScheduler(sched.NewRunLoop()))

	if err := RegisterStrategy(engine.Registry(), NewSingleExecutionStrategy("single")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	info := NewSingleExecutionInfo("single", "fetch", ModePerBoundary)
	engine.Acquire(context.Background(), "b", info)
	engine.Unlock(context.Background(), "b", info, sched.NextTick())

	// Close waits for accepted releases; goleak verifies no goroutine is left.
	if err := engine.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("expected repeated close idempotent, got %v", err)
	}

	if got := len(engine.CurrentLocks("b")); got != 0 {
		t.Errorf("expected the deferred release to have run by close, got %d held", got)
	}
}
