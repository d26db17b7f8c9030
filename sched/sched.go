// Package sched provides the unlock scheduling policies and schedulers for
// the axe engine: a granted unlock runs either synchronously inline or
// deferred — on the next tick of a run loop, at the end of the surrounding
// transition, or after a fixed delay.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Scheduler errors
var (
	// ErrSchedulerClosed indicates the scheduler no longer accepts work
	ErrSchedulerClosed = errors.New("scheduler closed")
)

// PolicyKind selects when a scheduled release runs.
type PolicyKind int

const (
	// KindImmediate runs the release synchronously inline.
	KindImmediate PolicyKind = iota
	// KindNextTick defers the release to the next iteration of the
	// scheduler's run loop.
	KindNextTick
	// KindEndOfTransition defers the release until the transition carried in
	// the context ends. Without an ambient transition it degrades to
	// immediate.
	KindEndOfTransition
	// KindDelayed defers the release by a fixed timer.
	KindDelayed
)

// String returns the string representation of the policy kind.
func (k PolicyKind) String() string {
	switch k {
	case KindImmediate:
		return "immediate"
	case KindNextTick:
		return "next-tick"
	case KindEndOfTransition:
		return "end-of-transition"
	case KindDelayed:
		return "delayed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Policy is the unlock timing selection, chosen per unlock call with a
// process-wide default in the engine config.
type Policy struct {
	kind  PolicyKind
	delay time.Duration
}

// Immediate returns the synchronous inline policy.
func Immediate() Policy {
	return Policy{kind: KindImmediate}
}

// NextTick returns the next-run-loop-iteration policy.
func NextTick() Policy {
	return Policy{kind: KindNextTick}
}

// EndOfTransition returns the transition-deferred policy. See Begin.
func EndOfTransition() Policy {
	return Policy{kind: KindEndOfTransition}
}

// Delayed returns the fixed-timer policy. A non-positive delay degrades to
// immediate.
func Delayed(delay time.Duration) Policy {
	if delay <= 0 {
		return Immediate()
	}
	return Policy{kind: KindDelayed, delay: delay}
}

// Kind returns the policy kind.
func (p Policy) Kind() PolicyKind {
	return p.kind
}

// Delay returns the timer duration for KindDelayed policies.
func (p Policy) Delay() time.Duration {
	return p.delay
}

// String returns the string representation of the policy.
func (p Policy) String() string {
	if p.kind == KindDelayed {
		return fmt.Sprintf("delayed(%v)", p.delay)
	}
	return p.kind.String()
}

// Scheduler executes scheduled releases according to a policy. A scheduled
// function must eventually run exactly once as long as Schedule returned nil;
// implementations never drop accepted work.
type Scheduler interface {
	// Schedule arranges for fn to run per the policy. Immediate policies run
	// fn before Schedule returns.
	Schedule(ctx context.Context, policy Policy, fn func()) error

	// Close shuts the scheduler down. Work already accepted still runs.
	Close() error
}

// Logger defines the logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// defaultLogger is the default logger implementation.
type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf("[sched] "+format, v...)
}

// Synchronous runs every policy inline, except end-of-transition when an
// ambient transition is present. It is the degraded fallback and the default
// for tests: no background goroutine, no timers.
type Synchronous struct{}

var _ Scheduler = (*Synchronous)(nil)

// NewSynchronous creates the inline scheduler.
func NewSynchronous() *Synchronous {
	return &Synchronous{}
}

// Schedule runs fn inline, or defers it to the ambient transition for
// end-of-transition policies.
func (s *Synchronous) Schedule(ctx context.Context, policy Policy, fn func()) error {
	if policy.Kind() == KindEndOfTransition {
		if tr := TransitionFrom(ctx); tr != nil {
			tr.Defer(fn)
			return nil
		}
	}
	fn()
	return nil
}

// Close does nothing.
func (s *Synchronous) Close() error {
	return nil
}
