// Package loadgen drives concurrent request lines against a running server
// and summarizes the status lines it gets back.
package loadgen

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/core/concurrency"
)

// Config configures a load run
type Config struct {
	Addr        string
	Requests    int
	Concurrency int
	RequestLine string
	Timeout     time.Duration
	Logger      core.Logger
}

// DefaultConfig targets the index page of a local server
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:7878",
		Requests:    100,
		Concurrency: 8,
		RequestLine: "GET / HTTP/1.1",
		Timeout:     5 * time.Second,
	}
}

// Report summarizes a run
type Report struct {
	Requests int
	Errors   int
	Skipped  int
	ByStatus map[string]int
	Elapsed  time.Duration
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
}

// String renders the report for a terminal
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "requests: %d  errors: %d  skipped: %d  elapsed: %s\n", r.Requests, r.Errors, r.Skipped, r.Elapsed)
	fmt.Fprintf(&b, "latency min/mean/max: %s / %s / %s\n", r.Min, r.Mean, r.Max)

	statuses := make([]string, 0, len(r.ByStatus))
	for s := range r.ByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "  %6d  %s\n", r.ByStatus[s], s)
	}
	return b.String()
}

type collector struct {
	mu      sync.Mutex
	report  Report
	total   time.Duration
	samples int
}

func (c *collector) record(status string, elapsed time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.report.Errors++
		return
	}
	c.report.ByStatus[status]++
	c.samples++
	c.total += elapsed
	if c.report.Min == 0 || elapsed < c.report.Min {
		c.report.Min = elapsed
	}
	if elapsed > c.report.Max {
		c.report.Max = elapsed
	}
}

func (c *collector) skip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Skipped++
}

// Run sends cfg.Requests request lines from cfg.Concurrency workers. Requests
// still queued when ctx is cancelled are counted as skipped.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Requests < 1 {
		return nil, fmt.Errorf("loadgen: requests must be positive, got %d", cfg.Requests)
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("loadgen: concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	c := &collector{report: Report{Requests: cfg.Requests, ByStatus: make(map[string]int)}}
	pool := concurrency.NewWorkerPoolWithConfig(concurrency.WorkerPoolConfig{
		Name:    "loadgen",
		Workers: cfg.Concurrency,
		Logger:  logger,
	})

	start := time.Now()
	for i := 0; i < cfg.Requests; i++ {
		pool.SubmitFunc(func() {
			if ctx.Err() != nil {
				c.skip()
				return
			}
			began := time.Now()
			status, err := RoundTrip(ctx, cfg.Addr, cfg.RequestLine, cfg.Timeout)
			c.record(status, time.Since(began), err)
		})
	}
	pool.Shutdown()

	c.report.Elapsed = time.Since(start)
	if c.samples > 0 {
		c.report.Mean = c.total / time.Duration(c.samples)
	}
	return &c.report, nil
}

// RoundTrip sends one request line and returns the response status line
func RoundTrip(ctx context.Context, addr, requestLine string, timeout time.Duration) (string, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := io.WriteString(conn, requestLine+"\r\n\r\n"); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("loadgen: read status line: %w", err)
	}
	if _, err := io.Copy(io.Discard, br); err != nil {
		return "", fmt.Errorf("loadgen: read body: %w", err)
	}
	return strings.TrimRight(status, "\r\n"), nil
}
