// Package tracing provides OpenTelemetry tracing integration for the axe engine.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer defines the interface for tracing lock operations.
type Tracer interface {
	// StartAcquire starts a span for a full acquire sequence
	// (resolve, latch, decide, commit).
	StartAcquire(ctx context.Context, boundary, strategy, action string) (context.Context, Span)

	// StartUnlock starts a span for a lock release.
	StartUnlock(ctx context.Context, boundary, strategy, action string) (context.Context, Span)

	// StartCleanup starts a span for a cleanup operation.
	StartCleanup(ctx context.Context, scope string) (context.Context, Span)
}

// Span represents an active tracing span.
type Span interface {
	// End completes the span.
	End()

	// SetError marks the span as having an error.
	SetError(err error)

	// SetStatus sets the span status.
	SetStatus(code codes.Code, description string)

	// SetAttributes adds attributes to the span.
	SetAttributes(attrs ...attribute.KeyValue)

	// AddEvent adds an event to the span.
	AddEvent(name string, attrs ...attribute.KeyValue)
}

// OTelTracer implements Tracer using OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
}

// Config holds configuration for OTelTracer.
type Config struct {
	// ServiceName is the name of the service for tracing.
	ServiceName string
	// TracerProvider is the OpenTelemetry tracer provider. If nil, the global provider is used.
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "axe",
		TracerProvider: nil,
	}
}

// NewOTelTracer creates a new OTelTracer with the given configuration.
func NewOTelTracer(cfg Config) *OTelTracer {
	var tp trace.TracerProvider
	if cfg.TracerProvider != nil {
		tp = cfg.TracerProvider
	} else {
		tp = otel.GetTracerProvider()
	}

	return &OTelTracer{
		tracer: tp.Tracer(cfg.ServiceName),
	}
}

// StartAcquire starts a span for a full acquire sequence.
func (t *OTelTracer) StartAcquire(ctx context.Context, boundary, strategy, action string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "lock.acquire",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("lock.boundary", boundary),
			attribute.String("lock.strategy", strategy),
			attribute.String("lock.action", action),
		),
	)
	return ctx, &otelSpan{span: span}
}

// StartUnlock starts a span for a lock release.
func (t *OTelTracer) StartUnlock(ctx context.Context, boundary, strategy, action string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "lock.unlock",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("lock.boundary", boundary),
			attribute.String("lock.strategy", strategy),
			attribute.String("lock.action", action),
		),
	)
	return ctx, &otelSpan{span: span}
}

// StartCleanup starts a span for a cleanup operation.
func (t *OTelTracer) StartCleanup(ctx context.Context, scope string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "lock.cleanup",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("lock.cleanup_scope", scope),
		),
	)
	return ctx, &otelSpan{span: span}
}

// otelSpan wraps an OpenTelemetry span.
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetError(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s *otelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// NoopTracer is a no-op implementation of Tracer for testing or when tracing is disabled.
type NoopTracer struct{}

var _ Tracer = (*NoopTracer)(nil)

func (n *NoopTracer) StartAcquire(ctx context.Context, boundary, strategy, action string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (n *NoopTracer) StartUnlock(ctx context.Context, boundary, strategy, action string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (n *NoopTracer) StartCleanup(ctx context.Context, scope string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

// noopSpan is a no-op span implementation.
type noopSpan struct{}

func (s *noopSpan) End()                                              {}
func (s *noopSpan) SetError(err error)                                {}
func (s *noopSpan) SetStatus(code codes.Code, description string)     {}
func (s *noopSpan) SetAttributes(attrs ...attribute.KeyValue)         {}
func (s *noopSpan) AddEvent(name string, attrs ...attribute.KeyValue) {}
