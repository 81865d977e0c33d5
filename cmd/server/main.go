// Command server answers rate requests over TCP on a fixed-size worker pool.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxorio/exchanger/pkg/app"
	"github.com/fluxorio/exchanger/pkg/config"
	"github.com/fluxorio/exchanger/pkg/core/concurrency"
	"github.com/fluxorio/exchanger/pkg/handler"
	"github.com/fluxorio/exchanger/pkg/tcp"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadAppFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := deps.Close(context.Background()); cerr != nil {
			deps.Logger.Errorf("shutdown: %v", cerr)
		}
	}()
	deps.StartMetrics()

	pool := concurrency.NewWorkerPoolWithConfig(concurrency.WorkerPoolConfig{
		Name:     "exchanger",
		Workers:  cfg.Server.Workers,
		Logger:   deps.Logger,
		Observer: deps.Metrics,
	})
	deps.Metrics.WatchPool(pool)

	srv := tcp.NewTCPServer(&tcp.TCPServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Logger:       deps.Logger,
	}, pool)
	srv.Use(
		tcp.LoggingMiddleware(),
		tcp.TracingMiddleware(),
		tcp.MetricsMiddleware(deps.Metrics),
	)
	srv.SetHandler(handler.New(deps.Estimator, cfg.Exchange.ServerWindowDays, deps.Logger).Handle)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Shutting down.")
		_ = srv.Stop()
		return <-errCh
	case err := <-errCh:
		_ = srv.Stop()
		return err
	}
}
