// Package exchange fetches rate time series from the exchange-rate API and
// turns them into current and estimated future rates.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fluxorio/exchanger/pkg/config"
	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/rates"
)

const tracerName = "github.com/fluxorio/exchanger/pkg/exchange"

var (
	// ErrNoRates is returned when the API answers without any usable rate
	ErrNoRates = errors.New("exchange: response contains no rates")

	// ErrUnexpectedStatus is wrapped when the API answers with a non-200 status
	ErrUnexpectedStatus = errors.New("exchange: unexpected status")
)

// Source yields rate history covering the last days days
type Source interface {
	FetchTimeSeries(ctx context.Context, days int) (*rates.TimeSeries, error)
}

// Store persists fetched series
type Store interface {
	SaveSeries(ctx context.Context, base, target string, series *rates.TimeSeries) error
}

// Recorder receives fetch outcomes, e.g. for metrics
type Recorder interface {
	ObserveFetch(elapsed time.Duration, err error)
}

// Client talks to the exchange-rate API over fasthttp
type Client struct {
	http     *fasthttp.Client
	scheme   string
	host     string
	base     string
	target   string
	timeout  time.Duration
	store    Store
	recorder Recorder
	logger   core.Logger
	now      func() time.Time
}

// Option customizes a Client
type Option func(*Client)

// WithStore saves every fetched series
func WithStore(s Store) Option {
	return func(c *Client) { c.store = s }
}

// WithRecorder reports fetch outcomes
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the client logger
func WithLogger(l core.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides time.Now, used to compute the date window
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for the configured API and currency pair
func NewClient(cfg config.ExchangeConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}

	c := &Client{
		http: &fasthttp.Client{
			Name:         "exchanger",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		scheme:  scheme,
		host:    cfg.Host,
		base:    cfg.Base,
		target:  cfg.Target,
		timeout: timeout,
		logger:  core.NewDefaultLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pair returns the base and target currency codes
func (c *Client) Pair() (string, string) {
	return c.base, c.target
}

// RequestURI builds the timeseries query ending today and starting days ago
func (c *Client) RequestURI(days int) string {
	end := c.now().UTC()
	start := end.AddDate(0, 0, -days)

	q := url.Values{}
	q.Set("base", c.base)
	q.Set("symbols", c.target)
	q.Set("start_date", rates.FormatDate(start))
	q.Set("end_date", rates.FormatDate(end))

	u := url.URL{Scheme: c.scheme, Host: c.host, Path: "/timeseries", RawQuery: q.Encode()}
	return u.String()
}

// FetchTimeSeries implements Source
func (c *Client) FetchTimeSeries(ctx context.Context, days int) (series *rates.TimeSeries, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "exchange.FetchTimeSeries")
	span.SetAttributes(
		attribute.String("exchange.pair", c.base+"/"+c.target),
		attribute.Int("exchange.days", days),
	)
	start := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveFetch(time.Since(start), err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.RequestURI(days))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.SetConnectionClose()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("exchange: fetch %s: %w", c.host, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w %d from %s", ErrUnexpectedStatus, resp.StatusCode(), c.host)
	}

	series, err = ParseTimeSeries(resp.Body(), c.target)
	if err != nil {
		return nil, err
	}
	c.logger.Debugf("fetched %d %s/%s rates", series.Len(), c.base, c.target)

	if c.store != nil {
		if serr := c.store.SaveSeries(ctx, c.base, c.target, series); serr != nil {
			c.logger.Warnf("failed to persist %s/%s series: %v", c.base, c.target, serr)
		}
	}
	return series, nil
}

type timeSeriesBody struct {
	Rates map[string]map[string]float64 `json:"rates"`
}

// ParseTimeSeries decodes a timeseries response body and extracts symbol.
// Anything around the outermost JSON object, such as chunk-size lines, is ignored.
func ParseTimeSeries(body []byte, symbol string) (*rates.TimeSeries, error) {
	obj, err := core.JSONObject(body)
	if err != nil {
		return nil, fmt.Errorf("exchange: %v: %w", err, ErrNoRates)
	}

	var decoded timeSeriesBody
	if err := core.JSONDecode(obj, &decoded); err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}

	byDate := make(map[string]float64, len(decoded.Rates))
	for date, perSymbol := range decoded.Rates {
		for sym, rate := range perSymbol {
			if strings.EqualFold(sym, symbol) {
				byDate[date] = rate
				break
			}
		}
	}
	if len(byDate) == 0 {
		return nil, ErrNoRates
	}
	return rates.FromMap(byDate)
}
