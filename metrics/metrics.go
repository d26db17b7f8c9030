// Package metrics provides the metrics interface for the axe engine.
package metrics

import (
	"time"
)

// Metrics defines the interface for collecting observability metrics.
// Implementations can use Prometheus, StatsD, or other metrics backends.
type Metrics interface {
	// Lock decision metrics
	LockGranted(strategy string)
	LockPreempted(strategy string)
	LockCancelled(strategy string, reason string)
	LockUnguarded(strategy string)

	// Release metrics
	LockReleased(strategy string)

	// Acquire latency (resolve + latch + decide + commit)
	AcquireDuration(strategy string, duration time.Duration)

	// Cleanup metrics
	BoundaryCleaned()
	AllCleaned()

	// Watchdog metrics
	LongHeldLock(strategy string)
}

// NoopMetrics is a no-op implementation of Metrics for testing or when metrics are disabled.
type NoopMetrics struct{}

var _ Metrics = (*NoopMetrics)(nil)

func (n *NoopMetrics) LockGranted(strategy string)                           {}
func (n *NoopMetrics) LockPreempted(strategy string)                         {}
func (n *NoopMetrics) LockCancelled(strategy string, reason string)          {}
func (n *NoopMetrics) LockUnguarded(strategy string)                         {}
func (n *NoopMetrics) LockReleased(strategy string)                          {}
func (n *NoopMetrics) AcquireDuration(strategy string, d time.Duration)      {}
func (n *NoopMetrics) BoundaryCleaned()                                      {}
func (n *NoopMetrics) AllCleaned()                                           {}
func (n *NoopMetrics) LongHeldLock(strategy string)                          {}
