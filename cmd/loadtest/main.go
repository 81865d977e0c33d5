// Command loadtest sends concurrent requests to a running exchanger server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/loadgen"
)

func main() {
	cfg := loadgen.DefaultConfig()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server address")
	flag.IntVar(&cfg.Requests, "n", cfg.Requests, "total requests")
	flag.IntVar(&cfg.Concurrency, "c", cfg.Concurrency, "concurrent clients")
	flag.StringVar(&cfg.RequestLine, "line", cfg.RequestLine, "request line to send")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	cfg.Logger = core.NewLogger("text", *level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := loadgen.Run(ctx, cfg)
	if err != nil {
		log.Fatalf("loadtest: %v", err)
	}
	fmt.Print(report)
}
