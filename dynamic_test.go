package axe

import (
	"errors"
	"testing"
)

func TestDynamic_PredicateDecides(t *testing.T) {
	s := NewDynamicConditionStrategy("dynamic")

	pass := NewDynamicInfo("dynamic", "poll", func() error { return nil })
	if res := s.CanLock("b", pass); !res.Granted() {
		t.Errorf("expected passing predicate to admit, got %v", res)
	}

	offline := errors.New("device offline")
	fail := NewDynamicInfo("dynamic", "poll", func() error { return offline })
	res := s.CanLock("b", fail)
	if res.Granted() {
		t.Fatal("expected failing predicate to cancel")
	}
	// The predicate's error passes through unchanged.
	if !errors.Is(res.Err(), offline) {
		t.Errorf("expected the predicate's error back, got %v", res.Err())
	}
}

func TestDynamic_NilPredicateAdmits(t *testing.T) {
	s := NewDynamicConditionStrategy("dynamic")

	info := NewDynamicInfo("dynamic", "poll", nil)
	if res := s.CanLock("b", info); !res.Granted() {
		t.Errorf("expected nil predicate to admit, got %v", res)
	}
}

func TestDynamic_PredicateEvaluatedPerRequest(t *testing.T) {
	s := NewDynamicConditionStrategy("dynamic")

	calls := 0
	info := NewDynamicInfo("dynamic", "poll", func() error {
		calls++
		if calls > 1 {
			return errors.New("budget spent")
		}
		return nil
	})

	if res := s.CanLock("b", info); !res.Granted() {
		t.Fatalf("expected first evaluation to admit, got %v", res)
	}
	if res := s.CanLock("b", info); res.Granted() {
		t.Fatal("expected second evaluation to cancel")
	}
	if calls != 2 {
		t.Errorf("expected the predicate called per CanLock, got %d calls", calls)
	}
}

func TestDynamic_UnlockReleasesByAction(t *testing.T) {
	s := NewDynamicConditionStrategy("dynamic")

	// Two concurrent instances of the same action, plus an unrelated one.
	a := NewDynamicInfo("dynamic", "poll", nil)
	b := NewDynamicInfo("dynamic", "poll", nil)
	other := NewDynamicInfo("dynamic", "report", nil)
	s.Lock("b", a)
	s.Lock("b", b)
	s.Lock("b", other)

	// Unlocking one 'poll' instance releases both.
	s.Unlock("b", a)
	held := s.CurrentLocks("b")
	if len(held) != 1 || held[0].ActionID() != "report" {
		t.Errorf("expected only 'report' to remain held, got %d entries", len(held))
	}
}
