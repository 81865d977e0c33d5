package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type countingRecorder struct {
	mu     sync.Mutex
	calls  int
	errors int
}

func (r *countingRecorder) ObserveConnection(_ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err != nil {
		r.errors++
	}
}

func newConnContext() *ConnContext {
	return &ConnContext{
		Context:    context.Background(),
		RequestID:  "req-1",
		Logger:     quietLogger(),
		RemoteAddr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5555},
	}
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &countingRecorder{}
	mw := MetricsMiddleware(rec)

	ok := mw(func(*ConnContext) error { return nil })
	bad := mw(func(*ConnContext) error { return errors.New("fail") })

	_ = ok(newConnContext())
	_ = bad(newConnContext())

	if rec.calls != 2 || rec.errors != 1 {
		t.Errorf("calls=%d errors=%d, want 2 and 1", rec.calls, rec.errors)
	}
}

func TestMetricsMiddleware_FailFast_NilPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for nil recorder")
		}
	}()
	MetricsMiddleware(nil)
}

func TestLoggingMiddlewarePassesErrorThrough(t *testing.T) {
	want := errors.New("fail")
	h := LoggingMiddleware()(func(*ConnContext) error { return want })
	if err := h(newConnContext()); !errors.Is(err, want) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestTracingMiddlewareRecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	var inner trace.SpanContext
	h := TracingMiddleware()(func(ctx *ConnContext) error {
		inner = trace.SpanContextFromContext(ctx.Context)
		return errors.New("fail")
	})
	_ = h(newConnContext())

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "tcp.connection" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if !inner.IsValid() || inner.SpanID() != spans[0].SpanContext.SpanID() {
		t.Errorf("handler did not see the connection span in its context")
	}
	if spans[0].Status.Code.String() != "Error" {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
}
