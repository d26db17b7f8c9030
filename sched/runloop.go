package sched

import (
	"context"
	"sync"
	"time"
)

// RunLoop is the event-loop scheduler: a background goroutine drains a FIFO
// queue, so next-tick releases run on the loop's next iteration and delayed
// releases are enqueued when their timer fires. An accepted release is never
// lost: after Close, delayed releases run inline when their timer fires.
type RunLoop struct {
	queue  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger Logger

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

var _ Scheduler = (*RunLoop)(nil)

// RunLoopOption is a function that configures the RunLoop.
type RunLoopOption func(*RunLoop)

// WithQueueSize sets the queue capacity. Default 128.
func WithQueueSize(size int) RunLoopOption {
	return func(l *RunLoop) {
		if size > 0 {
			l.queue = make(chan func(), size)
		}
	}
}

// WithLogger sets a custom logger for the run loop.
func WithLogger(logger Logger) RunLoopOption {
	return func(l *RunLoop) {
		l.logger = logger
	}
}

// NewRunLoop creates and starts a run loop scheduler.
func NewRunLoop(opts ...RunLoopOption) *RunLoop {
	l := &RunLoop{
		queue:  make(chan func(), 128),
		stopCh: make(chan struct{}),
		logger: &defaultLogger{},
	}

	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.run()

	return l
}

// run is the main loop, draining the queue until Close.
func (l *RunLoop) run() {
	defer l.wg.Done()

	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		case <-l.stopCh:
			// Close waits out in-flight enqueues before signalling stop, so
			// whatever is in the queue now is everything there will be.
			for {
				select {
				case fn := <-l.queue:
					l.execute(fn)
				default:
					return
				}
			}
		}
	}
}

// execute runs a single scheduled function, isolating panics.
func (l *RunLoop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("scheduled release panic: %v", r)
		}
	}()
	fn()
}

// Schedule arranges for fn to run per the policy.
func (l *RunLoop) Schedule(ctx context.Context, policy Policy, fn func()) error {
	switch policy.Kind() {
	case KindImmediate:
		fn()
		return nil

	case KindNextTick:
		return l.enqueue(ctx, fn)

	case KindEndOfTransition:
		if tr := TransitionFrom(ctx); tr != nil {
			tr.Defer(fn)
			return nil
		}
		fn()
		return nil

	case KindDelayed:
		time.AfterFunc(policy.Delay(), func() {
			// The loop may have shut down while the timer was pending; the
			// release still has to happen.
			if err := l.enqueue(context.Background(), fn); err != nil {
				l.execute(fn)
			}
		})
		return nil

	default:
		fn()
		return nil
	}
}

// enqueue puts fn on the loop's queue, failing when the scheduler is closed
// or ctx is done first.
func (l *RunLoop) enqueue(ctx context.Context, fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrSchedulerClosed
	}
	l.pending.Add(1)
	l.mu.Unlock()
	defer l.pending.Done()

	select {
	case l.queue <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop. Releases already on the queue (and enqueues already
// in flight) still run before Close returns; pending delayed timers run
// their release inline when they fire.
func (l *RunLoop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.pending.Wait()
	close(l.stopCh)
	l.wg.Wait()
	return nil
}
