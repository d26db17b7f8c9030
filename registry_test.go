package axe

import (
	"errors"
	"testing"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	if err := RegisterStrategy(r, NewSingleExecutionStrategy("single")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	s, err := r.Resolve("single")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if s.ID() != "single" {
		t.Errorf("expected id 'single', got %q", s.ID())
	}

	if !r.IsRegistered("single") {
		t.Error("expected 'single' registered")
	}
	if r.IsRegistered("other") {
		t.Error("expected 'other' unregistered")
	}
}

func TestRegistry_CollisionRejected(t *testing.T) {
	r := NewRegistry()

	if err := RegisterStrategy(r, NewSingleExecutionStrategy("single")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	err := RegisterStrategy(r, NewPriorityBasedStrategy("single"))
	if !errors.Is(err, ErrStrategyAlreadyRegistered) {
		t.Errorf("expected ErrStrategyAlreadyRegistered, got %v", err)
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("missing"); !errors.Is(err, ErrStrategyNotRegistered) {
		t.Errorf("expected ErrStrategyNotRegistered, got %v", err)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	_ = RegisterStrategy(r, NewSingleExecutionStrategy("single"))

	if !r.Unregister("single") {
		t.Error("expected unregister to report presence")
	}
	if r.Unregister("single") {
		t.Error("expected second unregister to report absence")
	}
	if r.IsRegistered("single") {
		t.Error("expected 'single' gone after unregister")
	}
}

func TestRegistry_IDsSorted(t *testing.T) {
	r := NewRegistry()
	_ = RegisterStrategy(r, NewSingleExecutionStrategy("c"))
	_ = RegisterStrategy(r, NewPriorityBasedStrategy("a"))
	_ = RegisterStrategy(r, NewDynamicConditionStrategy("b"))

	ids := r.IDs()
	want := []StrategyID{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for n := range want {
		if ids[n] != want[n] {
			t.Errorf("id %d: expected %q, got %q", n, want[n], ids[n])
		}
	}
}

func TestRegistry_CleanUpForwards(t *testing.T) {
	r := NewRegistry()
	single := NewSingleExecutionStrategy("single")
	priority := NewPriorityBasedStrategy("priority")
	_ = RegisterStrategy(r, single)
	_ = RegisterStrategy(r, priority)

	single.Lock("one", NewSingleExecutionInfo("single", "a", ModePerAction))
	priority.Lock("one", NewPriorityInfo("priority", "b", PriorityLow(BehaviorExclusive)))
	single.Lock("two", NewSingleExecutionInfo("single", "c", ModePerAction))

	if got := len(r.CurrentLocks("one")); got != 2 {
		t.Errorf("expected 2 aggregated entries for 'one', got %d", got)
	}

	r.CleanUpBoundary("one")
	if got := len(r.CurrentLocks("one")); got != 0 {
		t.Errorf("expected boundary 'one' cleared, got %d entries", got)
	}
	if got := len(r.CurrentLocks("two")); got != 1 {
		t.Errorf("expected boundary 'two' untouched, got %d entries", got)
	}

	r.CleanUp()
	if got := len(r.CurrentLocks("two")); got != 0 {
		t.Errorf("expected all state dropped, got %d entries", got)
	}
}

func TestEraseStrategy_TypeMismatch(t *testing.T) {
	erased := EraseStrategy(NewSingleExecutionStrategy("single"))

	// A foreign info kind cancels admission rather than panicking.
	wrong := NewPriorityInfo("single", "a", PriorityNone())
	res := erased.CanLock("b", wrong)
	if !errors.Is(res.Err(), ErrInfoTypeMismatch) {
		t.Errorf("expected ErrInfoTypeMismatch, got %v", res.Err())
	}

	// Lock and Unlock with a foreign kind are no-ops.
	erased.Lock("b", wrong)
	erased.Unlock("b", wrong)
	if got := len(erased.CurrentLocks("b")); got != 0 {
		t.Errorf("expected no entries recorded, got %d", got)
	}
}
