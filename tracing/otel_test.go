package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*OTelTracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelTracer(Config{ServiceName: "axe-test", TracerProvider: tp}), exporter
}

func findAttribute(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

func TestOTelTracer_AcquireSpan(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, span := tracer.StartAcquire(context.Background(), "screen/library", "single", "fetch")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "lock.acquire" {
		t.Errorf("expected span name 'lock.acquire', got %q", spans[0].Name)
	}
	for key, want := range map[string]string{
		"lock.boundary": "screen/library",
		"lock.strategy": "single",
		"lock.action":   "fetch",
	} {
		got, ok := findAttribute(spans[0].Attributes, key)
		if !ok || got != want {
			t.Errorf("attribute %s: expected %q, got %q (present=%v)", key, want, got, ok)
		}
	}
}

func TestOTelTracer_UnlockAndCleanupSpans(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, span := tracer.StartUnlock(context.Background(), "b", "single", "fetch")
	span.End()
	_, span = tracer.StartCleanup(context.Background(), "boundary")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "lock.unlock" || spans[1].Name != "lock.cleanup" {
		t.Errorf("unexpected span names: %q, %q", spans[0].Name, spans[1].Name)
	}
	if got, _ := findAttribute(spans[1].Attributes, "lock.cleanup_scope"); got != "boundary" {
		t.Errorf("expected cleanup scope 'boundary', got %q", got)
	}
}

func TestOTelTracer_SetErrorRecordsStatus(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, span := tracer.StartAcquire(context.Background(), "b", "single", "fetch")
	failErr := errors.New("boundary already locked")
	span.SetError(failErr)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	if len(spans[0].Events) != 1 || spans[0].Events[0].Name != "exception" {
		t.Errorf("expected a recorded exception event, got %+v", spans[0].Events)
	}

	// nil errors are ignored.
	_, span = tracer.StartAcquire(context.Background(), "b", "single", "fetch")
	span.SetError(nil)
	span.End()
	if got := exporter.GetSpans()[1].Status.Code; got == codes.Error {
		t.Error("expected nil SetError to leave the status alone")
	}
}

func TestOTelTracer_SpanContextPropagates(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	ctx, parent := tracer.StartAcquire(context.Background(), "b", "single", "fetch")
	_, child := tracer.StartUnlock(ctx, "b", "single", "fetch")
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	// The unlock span is a child of the acquire span.
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("expected the unlock span parented under the acquire span")
	}
}

func TestNoopTracer(t *testing.T) {
	tracer := &NoopTracer{}

	ctx, span := tracer.StartAcquire(context.Background(), "b", "single", "fetch")
	if ctx == nil {
		t.Fatal("expected the context back")
	}
	span.SetError(errors.New("ignored"))
	span.SetStatus(codes.Error, "ignored")
	span.SetAttributes(attribute.String("k", "v"))
	span.AddEvent("ignored")
	span.End()

	_, span = tracer.StartUnlock(ctx, "b", "single", "fetch")
	span.End()
	_, span = tracer.StartCleanup(ctx, "all")
	span.End()
}
