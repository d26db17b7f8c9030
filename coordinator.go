package axe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"axe/event"
	"axe/metrics"
	"axe/sched"
	"axe/tracing"
)

// FailureHandler is the caller-side callback invoked with contention errors:
// the Cancel reason when a request is rejected, and a CancellationError for
// each previously-granted entry the host must now cancel. The engine never
// cancels concurrent work itself; it only reports which entry must go.
type FailureHandler func(boundaryID BoundaryID, info Info, err error)

// Coordinator is the strategy-engine facade: it owns the registry, the
// boundary-keyed exclusive section that makes the canLock→lock
// check-then-act sequence race-free, and the unlock scheduler.
type Coordinator struct {
	registry  *Registry
	latch     *boundaryLatch
	scheduler sched.Scheduler
	events    event.EventBus
	metrics   metrics.Metrics
	tracer    tracing.Tracer
	reporter  IssueReporter
	onFailure FailureHandler
	config    Config
}

// CoordinatorOption is a function that configures the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRegistry sets the strategy registry for the coordinator.
func WithRegistry(r *Registry) CoordinatorOption {
	return func(c *Coordinator) {
		c.registry = r
	}
}

// WithScheduler sets the unlock scheduler for the coordinator.
func WithScheduler(s sched.Scheduler) CoordinatorOption {
	return func(c *Coordinator) {
		c.scheduler = s
	}
}

// WithEventBus sets the event bus for the coordinator.
func WithEventBus(eb event.EventBus) CoordinatorOption {
	return func(c *Coordinator) {
		c.events = eb
	}
}

// WithMetrics sets the metrics implementation for the coordinator.
func WithMetrics(m metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTracer sets the tracer for the coordinator.
func WithTracer(t tracing.Tracer) CoordinatorOption {
	return func(c *Coordinator) {
		c.tracer = t
	}
}

// WithReporter sets the diagnostics sink for the coordinator.
func WithReporter(r IssueReporter) CoordinatorOption {
	return func(c *Coordinator) {
		c.reporter = r
	}
}

// WithFailureHandler sets the caller-side failure callback.
func WithFailureHandler(h FailureHandler) CoordinatorOption {
	return func(c *Coordinator) {
		c.onFailure = h
	}
}

// WithCoordinatorConfig sets the configuration for the coordinator.
func WithCoordinatorConfig(cfg Config) CoordinatorOption {
	return func(c *Coordinator) {
		c.config = cfg
	}
}

// NewCoordinator creates a new Coordinator with the given options.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		scheduler: sched.NewSynchronous(),
		events:    event.NewNoOpEventBus(),
		metrics:   &metrics.NoopMetrics{},
		tracer:    &tracing.NoopTracer{},
		reporter:  NopReporter{},
		config:    DefaultConfig(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = NewRegistry()
	}
	if c.config.LatchShards <= 0 || c.config.LatchShards&(c.config.LatchShards-1) != 0 {
		c.config.LatchShards = DefaultConfig().LatchShards
	}
	c.latch = newBoundaryLatch(c.config.LatchShards)

	return c
}

// Registry returns the coordinator's strategy registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Config returns the coordinator configuration.
func (c *Coordinator) Config() Config {
	return c.config
}

// WithBoundaryLock runs body while holding the boundary's exclusive section,
// so two concurrent callers targeting the same boundary cannot both observe
// "no conflict" and both proceed. Distinct boundary ids run fully in
// parallel, and a body may acquire a different boundary's section nested
// inside its own. Re-entering the same boundary's section deadlocks until
// ctx is done.
func (c *Coordinator) WithBoundaryLock(ctx context.Context, boundaryID BoundaryID, body func(ctx context.Context) error) error {
	release, err := c.latch.acquire(ctx, boundaryID)
	if err != nil {
		return err
	}
	defer release()
	return body(ctx)
}

// CanLock asks the request's strategy for a decision without committing
// anything. For a race-free check-then-act use Acquire, or call CanLock and
// Lock inside one WithBoundaryLock body.
//
// An unregistered strategy is reported to the diagnostics sink and the
// request degrades to an unguarded Success.
func (c *Coordinator) CanLock(ctx context.Context, boundaryID BoundaryID, info Info) Result {
	strategy, err := c.registry.Resolve(info.StrategyID())
	if err != nil {
		c.reportUnguarded(ctx, boundaryID, info, err, callerLocation(1))
		return Success()
	}
	return strategy.CanLock(boundaryID, info)
}

// Lock commits a previously-granted request into its strategy's held-lock
// table. The caller must hold the boundary's exclusive section and must have
// received a granted CanLock for the same info.
func (c *Coordinator) Lock(ctx context.Context, boundaryID BoundaryID, info Info) {
	strategy, err := c.registry.Resolve(info.StrategyID())
	if err != nil {
		c.reportUnguarded(ctx, boundaryID, info, err, callerLocation(1))
		return
	}
	strategy.Lock(boundaryID, info)
	c.metrics.LockGranted(info.StrategyID().String())
	c.publish(ctx, c.lockEvent(event.EventLockGranted, boundaryID, info))
}

// Acquire is the canonical check-then-act sequence: it resolves the
// strategy, takes the boundary's exclusive section, evaluates CanLock and,
// when granted, releases any displaced entries inline (never deferred, to
// avoid priority inversion) before committing the new entry.
//
// Cancel reasons and displaced entries are routed to the failure handler.
// An unregistered strategy degrades to an unguarded Success after reporting
// to the diagnostics sink. A context cancelled while waiting for the
// boundary's section yields Cancel carrying the context error.
func (c *Coordinator) Acquire(ctx context.Context, boundaryID BoundaryID, info Info) Result {
	start := time.Now()
	ctx, span := c.tracer.StartAcquire(ctx, boundaryString(boundaryID),
		info.StrategyID().String(), info.ActionID().String())
	defer span.End()

	strategy, err := c.registry.Resolve(info.StrategyID())
	if err != nil {
		c.reportUnguarded(ctx, boundaryID, info, err, callerLocation(1))
		return Success()
	}

	var res Result
	latchErr := c.WithBoundaryLock(ctx, boundaryID, func(ctx context.Context) error {
		res = strategy.CanLock(boundaryID, info)

		switch res.Kind() {
		case KindCancel:
			span.SetError(res.Err())
			c.metrics.LockCancelled(info.StrategyID().String(), cancelReason(res.Err()))
			c.publish(ctx, c.lockEvent(event.EventLockCancelled, boundaryID, info).WithError(res.Err()))
			c.fail(boundaryID, info, res.Err())

		case KindSuccessWithPrecedingCancellation:
			for _, ce := range PrecedingCancellations(res.Err()) {
				c.releaseDisplaced(ctx, strategy, ce)
			}
			strategy.Lock(boundaryID, info)
			c.metrics.LockGranted(info.StrategyID().String())
			c.publish(ctx, c.lockEvent(event.EventLockGranted, boundaryID, info))

		case KindSuccess:
			strategy.Lock(boundaryID, info)
			c.metrics.LockGranted(info.StrategyID().String())
			c.publish(ctx, c.lockEvent(event.EventLockGranted, boundaryID, info))
		}
		return nil
	})
	if latchErr != nil {
		span.SetError(latchErr)
		return Cancel(latchErr)
	}

	c.metrics.AcquireDuration(info.StrategyID().String(), time.Since(start))
	return res
}

// releaseDisplaced drops a displaced entry from its strategy's table,
// immediately and inside the boundary's section, and tells the host to
// cancel the entry's work. The displaced entry's own strategy id is resolved
// so a composite grant releases from every sub-strategy.
func (c *Coordinator) releaseDisplaced(ctx context.Context, acquiring *AnyStrategy, ce *CancellationError) {
	strategy := acquiring
	if resolved, err := c.registry.Resolve(ce.Cancelled.StrategyID()); err == nil {
		strategy = resolved
	}
	strategy.Unlock(ce.Boundary, ce.Cancelled)

	c.metrics.LockPreempted(ce.Cancelled.StrategyID().String())
	c.publish(ctx, c.lockEvent(event.EventLockPreempted, ce.Boundary, ce.Cancelled).WithError(ce))
	c.fail(ce.Boundary, ce.Cancelled, ce)
}

// Unlock schedules the release of a granted request according to the given
// policy, falling back to the engine default when none is passed. A release
// the scheduler cannot accept runs inline — an unlock is never lost.
//
// Unlocking an entry that is not held is a no-op. An unregistered strategy
// is reported and ignored.
func (c *Coordinator) Unlock(ctx context.Context, boundaryID BoundaryID, info Info, policy ...sched.Policy) {
	strategy, err := c.registry.Resolve(info.StrategyID())
	if err != nil {
		c.reporter.ReportIssue(
			fmt.Sprintf("unlock for unregistered strategy %q (action %q)", info.StrategyID(), info.ActionID()),
			callerLocation(1))
		return
	}

	p := c.config.DefaultUnlockPolicy
	if len(policy) > 0 {
		p = policy[0]
	}

	release := func() {
		strategy.Unlock(boundaryID, info)
		c.metrics.LockReleased(info.StrategyID().String())
		c.publish(ctx, c.lockEvent(event.EventLockReleased, boundaryID, info))
	}

	_, span := c.tracer.StartUnlock(ctx, boundaryString(boundaryID),
		info.StrategyID().String(), info.ActionID().String())
	defer span.End()

	if err := c.scheduler.Schedule(ctx, p, release); err != nil {
		span.SetError(err)
		release()
	}
}

// CleanUp drops all held state across every registered strategy.
func (c *Coordinator) CleanUp(ctx context.Context) {
	_, span := c.tracer.StartCleanup(ctx, "all")
	defer span.End()

	c.registry.CleanUp()
	c.metrics.AllCleaned()
	c.publish(ctx, event.NewEvent(event.EventCleanupAll))
}

// CleanUpBoundary drops the boundary's held state across every registered
// strategy.
func (c *Coordinator) CleanUpBoundary(ctx context.Context, boundaryID BoundaryID) {
	_, span := c.tracer.StartCleanup(ctx, "boundary")
	defer span.End()

	c.registry.CleanUpBoundary(boundaryID)
	c.metrics.BoundaryCleaned()
	c.publish(ctx, event.NewEvent(event.EventCleanupBoundary).WithBoundary(boundaryString(boundaryID)))
}

// CurrentLocks aggregates the boundary's held infos across every registered
// strategy.
func (c *Coordinator) CurrentLocks(boundaryID BoundaryID) []Info {
	return c.registry.CurrentLocks(boundaryID)
}

// fail routes a contention error to the failure handler, when one is set.
func (c *Coordinator) fail(boundaryID BoundaryID, info Info, err error) {
	if c.onFailure != nil {
		c.onFailure(boundaryID, info, err)
	}
}

// reportUnguarded handles the registration-error degrade: report to the
// diagnostics sink, count it, publish it, and let the action through.
func (c *Coordinator) reportUnguarded(ctx context.Context, boundaryID BoundaryID, info Info, err error, loc Location) {
	c.reporter.ReportIssue(
		fmt.Sprintf("action %q allowed through unguarded: %v", info.ActionID(), err), loc)
	c.metrics.LockUnguarded(info.StrategyID().String())
	c.publish(ctx, c.lockEvent(event.EventLockUnguarded, boundaryID, info).WithError(err))
}

// publish sends an event to the bus. Bus errors never affect lock decisions.
func (c *Coordinator) publish(ctx context.Context, e event.Event) {
	_ = c.events.Publish(ctx, e)
}

// lockEvent builds an event carrying the request's identity.
func (c *Coordinator) lockEvent(t event.EventType, boundaryID BoundaryID, info Info) event.Event {
	return event.NewEvent(t).
		WithBoundary(boundaryString(boundaryID)).
		WithStrategy(info.StrategyID().String()).
		WithAction(info.ActionID().String()).
		WithUniqueID(info.UniqueID().String())
}

// boundaryString renders a boundary id for events, traces and logs.
func boundaryString(boundaryID BoundaryID) string {
	if s, ok := boundaryID.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", boundaryID)
}

// cancelReason maps a contention error to a stable low-cardinality label.
func cancelReason(err error) string {
	switch {
	case errors.Is(err, ErrBoundaryAlreadyLocked):
		return "boundary_already_locked"
	case errors.Is(err, ErrActionAlreadyRunning):
		return "action_already_running"
	case errors.Is(err, ErrHigherPriorityExists):
		return "higher_priority_exists"
	case errors.Is(err, ErrSamePriorityConflict):
		return "same_priority_conflict"
	case errors.Is(err, ErrLeaderCannotJoinNonEmptyGroup):
		return "leader_cannot_join_non_empty_group"
	case errors.Is(err, ErrMemberCannotJoinEmptyGroup):
		return "member_cannot_join_empty_group"
	case errors.Is(err, ErrActionAlreadyInGroup):
		return "action_already_in_group"
	case errors.Is(err, ErrConcurrencyLimitReached):
		return "concurrency_limit_reached"
	case errors.Is(err, ErrInfoTypeMismatch):
		return "info_type_mismatch"
	case errors.Is(err, ErrCompositeInfoMismatch):
		return "composite_info_mismatch"
	default:
		return "condition_failed"
	}
}
