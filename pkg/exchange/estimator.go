package exchange

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/model"
	"github.com/fluxorio/exchanger/pkg/rates"
)

// DefaultModelWindowDays is the history length the model is fitted on
const DefaultModelWindowDays = 15

// RateResponse is the current rate plus estimated future rates keyed by date
type RateResponse struct {
	CurrentRate float64            `json:"currentRate"`
	FutureRates map[string]float64 `json:"futureRates"`
}

// Estimator fits a regression on recent history and extrapolates it
type Estimator struct {
	source     Source
	windowDays int
	opts       model.Options
}

// NewEstimator creates an estimator fitting on windowDays of history.
// A non-positive window selects DefaultModelWindowDays.
func NewEstimator(source Source, windowDays int) *Estimator {
	if windowDays <= 0 {
		windowDays = DefaultModelWindowDays
	}
	return &Estimator{source: source, windowDays: windowDays, opts: model.DefaultOptions()}
}

// WithOptions returns a copy using the given regression options
func (e *Estimator) WithOptions(opts model.Options) *Estimator {
	cp := *e
	cp.opts = opts
	return &cp
}

// RateResponse fetches the model window and estimates days ahead of the
// latest known date. days counts the latest date itself, so days-1 future
// dates are produced.
func (e *Estimator) RateResponse(ctx context.Context, days int) (resp *RateResponse, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "exchange.RateResponse")
	span.SetAttributes(attribute.Int("exchange.estimate_days", days))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	series, err := e.source.FetchTimeSeries(ctx, e.windowDays)
	if err != nil {
		return nil, err
	}
	return e.Estimate(series, days)
}

// Estimate builds a RateResponse from an already fetched series
func (e *Estimator) Estimate(series *rates.TimeSeries, days int) (*RateResponse, error) {
	last, ok := series.Last()
	if !ok {
		return nil, ErrNoRates
	}

	m, err := model.New(series, e.opts)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	future := m.EstimateFor(rates.FutureDates(last.Date, days))

	return &RateResponse{
		CurrentRate: last.Rate,
		FutureRates: future.ByDate(),
	}, nil
}

// JSON encodes the response body served on /latest
func (r *RateResponse) JSON() ([]byte, error) {
	return core.JSONEncode(r)
}
