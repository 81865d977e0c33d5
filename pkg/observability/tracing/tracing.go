// Package tracing configures the global OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fluxorio/exchanger/pkg/config"
)

// ShutdownFunc flushes and stops the provider
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Option customizes NewProvider
type Option func(*options)

type options struct {
	stdout io.Writer
}

// WithWriter sends the stdout exporter output to w
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// NewProvider builds a tracer provider for cfg.Exporter and installs it
// globally. The "none" exporter leaves the global no-op provider in place.
func NewProvider(cfg config.TracingConfig, opts ...Option) (ShutdownFunc, error) {
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "", "none":
		return noopShutdown, nil
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(o.stdout))
	case "zipkin":
		exporter, err = zipkin.New(cfg.ZipkinURL)
	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("tracing: create %s exporter: %w", cfg.Exporter, err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "exchanger"
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
