// Package axe implements a pluggable mutual-exclusion coordinator: callers
// request permission to run a named action inside a named boundary, and a
// registered strategy decides whether the action may proceed, must be
// rejected, or must preempt an already-running action. The engine only
// grants or denies permission and tracks who currently holds it; it never
// schedules or executes the guarded work.
package axe

import (
	"context"
	"sync"

	"axe/event"
	"axe/metrics"
	"axe/sched"
	"axe/tracing"
)

// Engine is the main entry point for the axe engine. It composes the
// strategy registry, the coordinator, the unlock scheduler and the
// observability collaborators, and exposes the lock surface the host adapter
// consumes.
type Engine struct {
	// coordinator handles lock decisions
	coordinator *Coordinator

	// Dependencies
	registry  *Registry
	scheduler sched.Scheduler
	events    event.EventBus
	metrics   metrics.Metrics
	tracer    tracing.Tracer
	reporter  IssueReporter
	onFailure FailureHandler

	// history is the bounded event log, attached when an event bus is
	// configured and the history size is non-zero.
	history *event.History

	// Configuration
	config Config

	closeOnce sync.Once
	closeErr  error
}

// EngineOption is a function that configures the Engine.
type EngineOption func(*Engine)

// WithEngineRegistry sets the strategy registry for the engine.
func WithEngineRegistry(r *Registry) EngineOption {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithEngineScheduler sets the unlock scheduler for the engine. The engine
// takes ownership: Close closes it.
func WithEngineScheduler(s sched.Scheduler) EngineOption {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithEngineEventBus sets the event bus for the engine.
func WithEngineEventBus(eb event.EventBus) EngineOption {
	return func(e *Engine) {
		e.events = eb
	}
}

// WithEngineMetrics sets the metrics implementation for the engine.
func WithEngineMetrics(m metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithEngineTracer sets the tracer for the engine.
func WithEngineTracer(t tracing.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithEngineReporter sets the diagnostics sink for the engine.
func WithEngineReporter(r IssueReporter) EngineOption {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithEngineFailureHandler sets the caller-side failure callback.
func WithEngineFailureHandler(h FailureHandler) EngineOption {
	return func(e *Engine) {
		e.onFailure = h
	}
}

// WithEngineConfig sets the configuration for the engine.
func WithEngineConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.config = cfg
	}
}

// NewEngine creates a new Engine with the given options. Strategies are
// registered against Registry (the RegisterStrategy helper erases typed
// strategies); each Engine owns its registry, so tests get isolation by
// constructing their own engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		scheduler: sched.NewSynchronous(),
		events:    event.NewNoOpEventBus(),
		metrics:   &metrics.NoopMetrics{},
		tracer:    &tracing.NoopTracer{},
		reporter:  NopReporter{},
		config:    DefaultConfig(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		e.registry = NewRegistry()
	}

	// Attach the bounded event history when a real bus is configured.
	if _, noop := e.events.(*event.NoOpEventBus); !noop && e.config.EventHistorySize > 0 {
		e.history = event.NewHistory(e.config.EventHistorySize)
		_ = e.events.SubscribeAll(e.history.Handler())
	}

	e.coordinator = NewCoordinator(
		WithRegistry(e.registry),
		WithScheduler(e.scheduler),
		WithEventBus(e.events),
		WithMetrics(e.metrics),
		WithTracer(e.tracer),
		WithReporter(e.reporter),
		WithFailureHandler(e.onFailure),
		WithCoordinatorConfig(e.config),
	)

	return e
}

// Registry returns the engine's strategy registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Coordinator returns the underlying coordinator.
func (e *Engine) Coordinator() *Coordinator {
	return e.coordinator
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// History returns the bounded event log, or nil when no event bus is
// configured.
func (e *Engine) History() *event.History {
	return e.history
}

// Acquire runs the race-free check-then-act sequence for the request.
func (e *Engine) Acquire(ctx context.Context, boundaryID BoundaryID, info Info) Result {
	return e.coordinator.Acquire(ctx, boundaryID, info)
}

// CanLock asks the request's strategy for a decision without committing.
func (e *Engine) CanLock(ctx context.Context, boundaryID BoundaryID, info Info) Result {
	return e.coordinator.CanLock(ctx, boundaryID, info)
}

// Lock commits a previously-granted request.
func (e *Engine) Lock(ctx context.Context, boundaryID BoundaryID, info Info) {
	e.coordinator.Lock(ctx, boundaryID, info)
}

// Unlock schedules the release of a granted request.
func (e *Engine) Unlock(ctx context.Context, boundaryID BoundaryID, info Info, policy ...sched.Policy) {
	e.coordinator.Unlock(ctx, boundaryID, info, policy...)
}

// WithBoundaryLock runs body while holding the boundary's exclusive section.
func (e *Engine) WithBoundaryLock(ctx context.Context, boundaryID BoundaryID, body func(ctx context.Context) error) error {
	return e.coordinator.WithBoundaryLock(ctx, boundaryID, body)
}

// CleanUp drops all held state across every registered strategy.
func (e *Engine) CleanUp(ctx context.Context) {
	e.coordinator.CleanUp(ctx)
}

// CleanUpBoundary drops the boundary's held state across every registered
// strategy.
func (e *Engine) CleanUpBoundary(ctx context.Context, boundaryID BoundaryID) {
	e.coordinator.CleanUpBoundary(ctx, boundaryID)
}

// CurrentLocks aggregates the boundary's held infos across every registered
// strategy.
func (e *Engine) CurrentLocks(boundaryID BoundaryID) []Info {
	return e.coordinator.CurrentLocks(boundaryID)
}

// Subscribe subscribes a handler to a specific event type.
func (e *Engine) Subscribe(eventType event.EventType, handler event.EventHandler) error {
	return e.events.Subscribe(eventType, handler)
}

// SubscribeAll subscribes a handler to all events.
func (e *Engine) SubscribeAll(handler event.EventHandler) error {
	return e.events.SubscribeAll(handler)
}

// Close shuts the engine down, closing the unlock scheduler. Releases the
// scheduler already accepted still run.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.scheduler.Close()
	})
	return e.closeErr
}
