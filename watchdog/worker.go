// Package watchdog provides the background worker that flags locks held
// longer than a threshold. It observes the engine's event bus, tracks open
// grants, and periodically raises alert events for long holders. It is
// purely observational: the engine never revokes a lock on its own.
package watchdog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"axe/event"
)

// Config holds the configuration for the watchdog worker.
type Config struct {
	// ScanInterval is the interval between scans of open grants.
	ScanInterval time.Duration
	// HoldThreshold is the duration after which a held lock is flagged.
	HoldThreshold time.Duration
}

// DefaultConfig returns the default configuration for the watchdog worker.
func DefaultConfig() Config {
	return Config{
		ScanInterval:  10 * time.Second,
		HoldThreshold: 1 * time.Minute,
	}
}

// Logger defines the logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// defaultLogger is the default logger implementation.
type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf("[Watchdog] "+format, v...)
}

// grant is one open lock observed on the bus.
type grant struct {
	boundary  string
	strategy  string
	action    string
	uniqueID  string
	grantedAt time.Time
	flagged   bool
}

// grantKey identifies an open grant. The unique id alone would do for most
// strategies, but a dynamic-condition release drops every instance of an
// action, so releases are matched on both.
type grantKey struct {
	boundary string
	uniqueID string
}

// Worker is the watchdog worker. It subscribes to the engine's event bus,
// mirrors the set of open grants, and periodically flags grants held longer
// than the threshold by publishing alert.warning events.
type Worker struct {
	bus        event.EventBus
	config     Config
	logger     Logger
	onLongHeld func(strategy string)

	// State
	grants  map[grantKey]*grant
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex

	flaggedCount int64
}

// WorkerOption is a function that configures the Worker.
type WorkerOption func(*Worker)

// WithEventBus sets the event bus for the worker.
func WithEventBus(eb event.EventBus) WorkerOption {
	return func(w *Worker) {
		w.bus = eb
	}
}

// WithConfig sets the configuration for the worker.
func WithConfig(cfg Config) WorkerOption {
	return func(w *Worker) {
		w.config = cfg
	}
}

// WithLogger sets the logger for the worker.
func WithLogger(l Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// WithLongHeldCallback sets a callback invoked once per flagged grant,
// typically wired to a metrics counter.
func WithLongHeldCallback(fn func(strategy string)) WorkerOption {
	return func(w *Worker) {
		w.onLongHeld = fn
	}
}

// NewWorker creates a new watchdog worker with the given options.
func NewWorker(opts ...WorkerOption) *Worker {
	w := &Worker{
		config: DefaultConfig(),
		logger: &defaultLogger{},
		grants: make(map[grantKey]*grant),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start subscribes to the event bus and starts the background scan loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watchdog worker already running")
	}
	if w.bus == nil {
		w.mu.Unlock()
		return fmt.Errorf("watchdog worker requires an event bus")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	if err := w.bus.SubscribeAll(w.handleEvent); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Printf("started with interval=%v, holdThreshold=%v", w.config.ScanInterval, w.config.HoldThreshold)
	return nil
}

// Stop stops the worker gracefully. The bus subscription stays in place but
// becomes inert.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Printf("stopped")
}

// IsRunning returns true if the worker is running.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// OpenGrants returns the number of grants currently tracked.
func (w *Worker) OpenGrants() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.grants)
}

// FlaggedCount returns the number of grants flagged since start.
func (w *Worker) FlaggedCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flaggedCount
}

// handleEvent mirrors lock lifecycle events into the open-grant set.
func (w *Worker) handleEvent(ctx context.Context, e event.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch e.Type {
	case event.EventLockGranted:
		w.grants[grantKey{boundary: e.Boundary, uniqueID: e.UniqueID}] = &grant{
			boundary:  e.Boundary,
			strategy:  e.Strategy,
			action:    e.Action,
			uniqueID:  e.UniqueID,
			grantedAt: e.Timestamp,
		}

	case event.EventLockReleased, event.EventLockPreempted:
		key := grantKey{boundary: e.Boundary, uniqueID: e.UniqueID}
		if _, ok := w.grants[key]; ok {
			delete(w.grants, key)
			break
		}
		// Dynamic-condition releases drop every instance of the action.
		for k, g := range w.grants {
			if g.boundary == e.Boundary && g.action == e.Action {
				delete(w.grants, k)
			}
		}

	case event.EventCleanupBoundary:
		for k, g := range w.grants {
			if g.boundary == e.Boundary {
				delete(w.grants, k)
			}
		}

	case event.EventCleanupAll:
		w.grants = make(map[grantKey]*grant)
	}

	return nil
}

// run is the main loop of the watchdog worker.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.scan(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// scan flags grants held longer than the threshold. Each grant is flagged
// once.
func (w *Worker) scan(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var flagged []*grant
	for _, g := range w.grants {
		if g.flagged {
			continue
		}
		if now.Sub(g.grantedAt) >= w.config.HoldThreshold {
			g.flagged = true
			w.flaggedCount++
			flagged = append(flagged, g)
		}
	}
	w.mu.Unlock()

	for _, g := range flagged {
		held := now.Sub(g.grantedAt)
		w.logger.Printf("lock held for %v (boundary=%s action=%s strategy=%s)", held, g.boundary, g.action, g.strategy)

		if w.onLongHeld != nil {
			w.onLongHeld(g.strategy)
		}

		_ = w.bus.Publish(ctx, event.NewEvent(event.EventAlertWarning).
			WithBoundary(g.boundary).
			WithStrategy(g.strategy).
			WithAction(g.action).
			WithUniqueID(g.uniqueID).
			WithData("held", held.String()).
			WithData("message", fmt.Sprintf("lock held longer than %v", w.config.HoldThreshold)))
	}
}
