package loadgen

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/core/concurrency"
	"github.com/fluxorio/exchanger/pkg/exchange"
	"github.com/fluxorio/exchanger/pkg/handler"
	"github.com/fluxorio/exchanger/pkg/tcp"
)

type fixedRates struct{}

func (fixedRates) RateResponse(context.Context, int) (*exchange.RateResponse, error) {
	return &exchange.RateResponse{CurrentRate: 90, FutureRates: map[string]float64{}}, nil
}

func quietLogger() core.Logger {
	return core.NewWriterLogger(io.Discard, core.LevelError)
}

func startExchanger(t *testing.T, workers int) string {
	t.Helper()
	pool := concurrency.NewWorkerPoolWithConfig(concurrency.WorkerPoolConfig{Workers: workers, Logger: quietLogger()})
	cfg := tcp.DefaultTCPServerConfig("127.0.0.1:0")
	cfg.Logger = quietLogger()
	srv := tcp.NewTCPServer(cfg, pool)
	srv.SetHandler(handler.New(fixedRates{}, 0, quietLogger()).Handle)

	go func() { _ = srv.Start() }()
	t.Cleanup(func() { _ = srv.Stop() })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.ListeningAddr(); addr != "" {
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start listening in time")
	return ""
}

func TestRunAgainstServer(t *testing.T) {
	addr := startExchanger(t, 2)

	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.Requests = 40
	cfg.Concurrency = 6
	cfg.Logger = quietLogger()

	report, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Errors != 0 || report.Skipped != 0 {
		t.Fatalf("unexpected failures: %s", report)
	}
	if got := report.ByStatus[handler.StatusOK]; got != 40 {
		t.Errorf("200 responses = %d, want 40", got)
	}
	if report.Min <= 0 || report.Max < report.Min || report.Mean < report.Min || report.Mean > report.Max {
		t.Errorf("inconsistent latencies: %s", report)
	}
	if !strings.Contains(report.String(), handler.StatusOK) {
		t.Errorf("report does not list statuses: %s", report)
	}
}

func TestRunMixedRoutes(t *testing.T) {
	addr := startExchanger(t, 1)

	for line, want := range map[string]string{
		handler.RouteLatest:  handler.StatusOK,
		"GET /nope HTTP/1.1": handler.StatusNotFound,
	} {
		status, err := RoundTrip(context.Background(), addr, line, 2*time.Second)
		if err != nil {
			t.Fatalf("%s: %v", line, err)
		}
		if status != want {
			t.Errorf("%s: status %q, want %q", line, status, want)
		}
	}
}

func TestRunUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	report, err := Run(context.Background(), Config{
		Addr: addr, Requests: 5, Concurrency: 2, RequestLine: "GET / HTTP/1.1",
		Timeout: 500 * time.Millisecond, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Errors != 5 {
		t.Errorf("Errors = %d, want 5", report.Errors)
	}
}

func TestRunCancelledSkipsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := Run(ctx, Config{Addr: "127.0.0.1:1", Requests: 3, Concurrency: 1, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", report.Skipped)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	if _, err := Run(context.Background(), Config{Requests: 0, Concurrency: 1}); err == nil {
		t.Error("expected error for zero requests")
	}
	if _, err := Run(context.Background(), Config{Requests: 1, Concurrency: 0}); err == nil {
		t.Error("expected error for zero concurrency")
	}
}
