package sched

import (
	"context"
	"sync"
)

// transitionKey is the context key carrying the ambient transition.
type transitionKey struct{}

// Transition is the deferred-release collection point for the
// end-of-transition policy. The operation that triggers guarded work begins
// a transition, carries it in the context, and ends it when its surrounding
// work finishes; releases scheduled with EndOfTransition run at that point,
// in scheduling order.
type Transition struct {
	mu       sync.Mutex
	deferred []func()
	ended    bool
}

// Begin starts a transition and returns a context carrying it. End must be
// called when the surrounding operation finishes.
func Begin(ctx context.Context) (context.Context, *Transition) {
	tr := &Transition{}
	return context.WithValue(ctx, transitionKey{}, tr), tr
}

// TransitionFrom returns the ambient transition carried in ctx, or nil.
func TransitionFrom(ctx context.Context) *Transition {
	tr, _ := ctx.Value(transitionKey{}).(*Transition)
	return tr
}

// Defer schedules fn to run when the transition ends. On an already-ended
// transition fn runs inline.
func (t *Transition) Defer(fn func()) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		fn()
		return
	}
	t.deferred = append(t.deferred, fn)
	t.mu.Unlock()
}

// End runs the deferred releases in scheduling order. Ending twice is a
// no-op.
func (t *Transition) End() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	deferred := t.deferred
	t.deferred = nil
	t.mu.Unlock()

	for _, fn := range deferred {
		fn()
	}
}

// Ended reports whether the transition has ended.
func (t *Transition) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}
