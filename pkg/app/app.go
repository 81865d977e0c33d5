// Package app wires the shared dependencies of the exchanger binaries from
// a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxorio/exchanger/pkg/config"
	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/exchange"
	"github.com/fluxorio/exchanger/pkg/observability/prometheus"
	"github.com/fluxorio/exchanger/pkg/observability/tracing"
	"github.com/fluxorio/exchanger/pkg/store"
)

// Deps holds the components every binary shares
type Deps struct {
	Config    *config.Config
	Logger    core.Logger
	Registry  *prom.Registry
	Metrics   *prometheus.Metrics
	Store     *store.Store // nil when no DSN is configured
	Client    *exchange.Client
	Estimator *exchange.Estimator

	closers []func(context.Context) error
}

// New builds logger, tracing, metrics, the optional store and the rate
// client. On error everything already opened is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *Deps, err error) {
	d := &Deps{
		Config: cfg,
		Logger: core.NewLogger(cfg.Log.Format, cfg.Log.Level),
	}
	defer func() {
		if err != nil {
			_ = d.Close(context.Background())
		}
	}()

	shutdownTracing, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, err
	}
	d.onClose(func(ctx context.Context) error { return shutdownTracing(ctx) })

	d.Registry = prometheus.NewRegistry()
	d.Metrics = prometheus.NewMetrics(d.Registry)

	opts := []exchange.Option{
		exchange.WithLogger(d.Logger.WithFields(map[string]interface{}{"component": "exchange"})),
		exchange.WithRecorder(d.Metrics),
	}
	if cfg.Store.DSN != "" {
		s, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		d.onClose(func(context.Context) error { return s.Close() })
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		d.Store = s
		d.Metrics.WatchDB(s.DB(), "rates")
		opts = append(opts, exchange.WithStore(s))
		d.Logger.Infof("rate history stored via %s", cfg.Store.Driver)
	}

	d.Client = exchange.NewClient(cfg.Exchange, opts...)
	d.Estimator = exchange.NewEstimator(d.Client, cfg.Exchange.ModelWindowDays)
	return d, nil
}

// StartMetrics serves /metrics in the background when enabled
func (d *Deps) StartMetrics() {
	if !d.Config.Metrics.Enabled {
		return
	}
	srv := prometheus.NewServer(d.Config.Metrics.Addr, d.Registry)
	go func() {
		if err := srv.Start(); err != nil {
			d.Logger.Errorf("metrics server stopped: %v", err)
		}
	}()
	d.onClose(func(context.Context) error { return srv.Shutdown() })
	d.Logger.Infof("metrics on http://%s/metrics", d.Config.Metrics.Addr)
}

func (d *Deps) onClose(fn func(context.Context) error) {
	d.closers = append(d.closers, fn)
}

// Close releases everything in reverse order of acquisition
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("app: close: %w", err)
	}
	return nil
}
