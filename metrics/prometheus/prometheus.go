// Package prometheus provides a Prometheus implementation of the metrics interface.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"axe/metrics"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	// Lock decision metrics
	lockGrantedTotal   *prometheus.CounterVec
	lockPreemptedTotal *prometheus.CounterVec
	lockCancelledTotal *prometheus.CounterVec
	lockUnguardedTotal *prometheus.CounterVec

	// Release metrics
	lockReleasedTotal *prometheus.CounterVec

	// Acquire latency
	acquireDuration *prometheus.HistogramVec

	// Cleanup metrics
	cleanupTotal *prometheus.CounterVec

	// Watchdog metrics
	longHeldLocksTotal *prometheus.CounterVec
}

var _ metrics.Metrics = (*PrometheusMetrics)(nil)

// Config holds configuration for PrometheusMetrics.
type Config struct {
	// Namespace is the prefix for all metrics (e.g., "axe")
	Namespace string
	// Subsystem is an optional subsystem name
	Subsystem string
	// Registry is the Prometheus registry to use. If nil, the default registry is used.
	Registry prometheus.Registerer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Namespace: "axe",
		Subsystem: "",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// New creates a new PrometheusMetrics instance with the given configuration.
func New(cfg Config) *PrometheusMetrics {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(cfg.Registry)

	return &PrometheusMetrics{
		lockGrantedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_granted_total",
			Help:      "Total number of lock requests granted",
		}, []string{"strategy"}),

		lockPreemptedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_preempted_total",
			Help:      "Total number of held locks displaced by a preceding cancellation",
		}, []string{"strategy"}),

		lockCancelledTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_cancelled_total",
			Help:      "Total number of lock requests cancelled",
		}, []string{"strategy", "reason"}),

		lockUnguardedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_unguarded_total",
			Help:      "Total number of requests allowed through unguarded (unregistered strategy)",
		}, []string{"strategy"}),

		lockReleasedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_released_total",
			Help:      "Total number of locks released",
		}, []string{"strategy"}),

		acquireDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "acquire_duration_seconds",
			Help:      "Acquire duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 12), // 10us to ~42s
		}, []string{"strategy"}),

		cleanupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cleanup_total",
			Help:      "Total number of cleanup operations",
		}, []string{"scope"}),

		longHeldLocksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "long_held_locks_total",
			Help:      "Total number of locks flagged as held longer than the watchdog threshold",
		}, []string{"strategy"}),
	}
}

// LockGranted increments the granted counter for the strategy.
func (m *PrometheusMetrics) LockGranted(strategy string) {
	m.lockGrantedTotal.WithLabelValues(strategy).Inc()
}

// LockPreempted increments the preempted counter for the strategy.
func (m *PrometheusMetrics) LockPreempted(strategy string) {
	m.lockPreemptedTotal.WithLabelValues(strategy).Inc()
}

// LockCancelled increments the cancelled counter for the strategy and reason.
func (m *PrometheusMetrics) LockCancelled(strategy string, reason string) {
	m.lockCancelledTotal.WithLabelValues(strategy, reason).Inc()
}

// LockUnguarded increments the unguarded counter for the strategy.
func (m *PrometheusMetrics) LockUnguarded(strategy string) {
	m.lockUnguardedTotal.WithLabelValues(strategy).Inc()
}

// LockReleased increments the released counter for the strategy.
func (m *PrometheusMetrics) LockReleased(strategy string) {
	m.lockReleasedTotal.WithLabelValues(strategy).Inc()
}

// AcquireDuration observes an acquire latency for the strategy.
func (m *PrometheusMetrics) AcquireDuration(strategy string, d time.Duration) {
	m.acquireDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// BoundaryCleaned increments the cleanup counter with boundary scope.
func (m *PrometheusMetrics) BoundaryCleaned() {
	m.cleanupTotal.WithLabelValues("boundary").Inc()
}

// AllCleaned increments the cleanup counter with all scope.
func (m *PrometheusMetrics) AllCleaned() {
	m.cleanupTotal.WithLabelValues("all").Inc()
}

// LongHeldLock increments the long-held counter for the strategy.
func (m *PrometheusMetrics) LongHeldLock(strategy string) {
	m.longHeldLocksTotal.WithLabelValues(strategy).Inc()
}
