package alert

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/exchange"
)

// Check outcomes reported to a Recorder
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// DefaultEstimateDays is the estimate length attached to an alert
const DefaultEstimateDays = 5

// RateSource produces the rate estimate a check is based on
type RateSource interface {
	RateResponse(ctx context.Context, days int) (*exchange.RateResponse, error)
}

// Recorder receives the outcome of every check
type Recorder interface {
	ObserveAlert(outcome string)
}

// CheckerConfig configures a Checker
type CheckerConfig struct {
	Base         string
	Target       string
	Threshold    float64
	EstimateDays int
	Logger       core.Logger
	Recorder     Recorder
}

// Checker compares the current rate against a threshold and notifies on a crossing
type Checker struct {
	rates    RateSource
	notifier Notifier
	cfg      CheckerConfig
	logger   core.Logger
	now      func() time.Time
}

// NewChecker creates a checker
func NewChecker(rates RateSource, notifier Notifier, cfg CheckerConfig) *Checker {
	if cfg.EstimateDays <= 0 {
		cfg.EstimateDays = DefaultEstimateDays
	}
	logger := cfg.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Checker{rates: rates, notifier: notifier, cfg: cfg, logger: logger, now: time.Now}
}

// Check runs one comparison. It reports whether an alert was delivered.
func (c *Checker) Check(ctx context.Context) (sent bool, err error) {
	ctx, _ = core.EnsureRequestID(ctx)
	logger := core.LoggerFor(ctx, c.logger)
	ctx, span := otel.Tracer("github.com/fluxorio/exchanger/pkg/alert").Start(ctx, "alert.Check")
	defer func() {
		span.SetAttributes(attribute.Bool("alert.sent", sent))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.record(OutcomeError)
		}
		span.End()
	}()

	resp, err := c.rates.RateResponse(ctx, c.cfg.EstimateDays)
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Float64("alert.current_rate", resp.CurrentRate))

	if resp.CurrentRate < c.cfg.Threshold {
		logger.Info("Rate threshold not passed; Email not sent to the user.")
		c.record(OutcomeSkipped)
		return false, nil
	}

	a := Alert{
		Base:        c.cfg.Base,
		Target:      c.cfg.Target,
		CurrentRate: resp.CurrentRate,
		Threshold:   c.cfg.Threshold,
		FutureRates: resp.FutureRates,
		CheckedAt:   c.now().UTC(),
	}
	if err := c.notifier.Notify(ctx, a); err != nil {
		return false, err
	}
	c.record(OutcomeSent)
	logger.Infof("Alert sent: %s/%s at %.4f passed threshold %.4f.", a.Base, a.Target, a.CurrentRate, a.Threshold)
	return true, nil
}

func (c *Checker) record(outcome string) {
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.ObserveAlert(outcome)
	}
}
