// Command emailer periodically checks the rate and sends an alert when it
// reaches the configured threshold.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxorio/exchanger/pkg/alert"
	"github.com/fluxorio/exchanger/pkg/app"
	"github.com/fluxorio/exchanger/pkg/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("emailer: %v", err)
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

	notifiers := alert.MultiNotifier{alert.NewSendGridNotifier(cfg.Alert.SendGrid, deps.Logger)}
	if cfg.Alert.NATS.URL != "" {
		n, err := alert.NewNATSNotifier(cfg.Alert.NATS)
		if err != nil {
			return err
		}
		defer n.Close()
		notifiers = append(notifiers, n)
	}

	base, target := deps.Client.Pair()
	checker := alert.NewChecker(deps.Estimator, notifiers, alert.CheckerConfig{
		Base:         base,
		Target:       target,
		Threshold:    cfg.Alert.Threshold,
		EstimateDays: cfg.Alert.EstimateDays,
		Logger:       deps.Logger,
		Recorder:     deps.Metrics,
	})

	err = alert.NewScheduler(checker, cfg.Alert.AlertInterval(), deps.Logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		deps.Logger.Info("Shutting down.")
		return nil
	}
	return err
}
