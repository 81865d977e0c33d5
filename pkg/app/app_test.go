package app

import (
	"context"
	"testing"

	"github.com/fluxorio/exchanger/pkg/config"
)

func TestNewWithoutStore(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close(context.Background())

	if d.Store != nil {
		t.Errorf("store should be disabled without a DSN")
	}
	if d.Client == nil || d.Estimator == nil || d.Metrics == nil {
		t.Errorf("missing dependencies: %+v", d)
	}
	if base, target := d.Client.Pair(); base != "EUR" || target != "INR" {
		t.Errorf("pair = %s/%s", base, target)
	}
}

func TestNewWithSQLiteStore(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cfg.Store.DSN = ":memory:"

	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.Store == nil {
		t.Fatal("expected store to be opened")
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestNewUnknownTracingExporter(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.Exporter = "carrier-pigeon"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestStartMetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	d.StartMetrics()
	if len(d.closers) != 1 {
		t.Errorf("disabled metrics should not register a closer, have %d", len(d.closers))
	}
	_ = d.Close(context.Background())
}
