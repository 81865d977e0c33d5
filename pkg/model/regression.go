// Package model fits a straight line through a rate series by batch
// gradient descent and uses it to extrapolate future rates.
package model

import (
	"errors"
	"math"
	"time"

	"github.com/fluxorio/exchanger/pkg/rates"
)

// ErrEmptySeries is returned when there is nothing to fit
var ErrEmptySeries = errors.New("model: empty rate series")

// Options tunes gradient descent
type Options struct {
	LearningRate float64
	MaxEpochs    int
	Tolerance    float64 // Stop once |Δcost| drops below this
}

// DefaultOptions returns the tuning used by the service
func DefaultOptions() Options {
	return Options{
		LearningRate: 0.1,
		MaxEpochs:    1000,
		Tolerance:    1e-3,
	}
}

// FitStats reports how the last fit ended
type FitStats struct {
	Epochs int
	Cost   float64
}

// LinearRegression predicts rate = θ0 + θ1·x where x is the date's unix
// time scaled by 1e-9
type LinearRegression struct {
	features [][2]float64
	observed []float64
	theta    [2]float64
	opts     Options
	stats    FitStats
	fitted   bool
}

// New builds an unfitted model over series
func New(series *rates.TimeSeries, opts Options) (*LinearRegression, error) {
	if series == nil || series.Len() == 0 {
		return nil, ErrEmptySeries
	}
	observed := make([]float64, series.Len())
	copy(observed, series.Rates)

	return &LinearRegression{
		features: featuresFor(series.Dates),
		observed: observed,
		opts:     opts,
	}, nil
}

// Fit runs gradient descent from θ = [0, 0]
func (m *LinearRegression) Fit() FitStats {
	theta := [2]float64{}
	size := float64(len(m.observed))
	previousCost := 100000.0
	costDiff := m.opts.Tolerance
	epochs := 0

	for epochs <= m.opts.MaxEpochs && costDiff >= m.opts.Tolerance {
		var grad [2]float64
		for i, f := range m.features {
			err := predict(theta, f) - m.observed[i]
			grad[0] += err * f[0]
			grad[1] += err * f[1]
		}
		theta[0] -= grad[0] * m.opts.LearningRate / size
		theta[1] -= grad[1] * m.opts.LearningRate / size

		c := cost(theta, m.features, m.observed)
		epochs++
		costDiff = math.Abs(previousCost - c)
		previousCost = c
	}

	m.theta = theta
	m.stats = FitStats{Epochs: epochs, Cost: previousCost}
	m.fitted = true
	return m.stats
}

// Coefficients returns θ0 and θ1
func (m *LinearRegression) Coefficients() (float64, float64) {
	return m.theta[0], m.theta[1]
}

// EstimateFor predicts a rate for each date, fitting first if needed
func (m *LinearRegression) EstimateFor(dates []time.Time) *rates.TimeSeries {
	if !m.fitted {
		m.Fit()
	}
	out := &rates.TimeSeries{
		Dates: make([]time.Time, len(dates)),
		Rates: make([]float64, len(dates)),
	}
	for i, f := range featuresFor(dates) {
		out.Dates[i] = dates[i]
		out.Rates[i] = predict(m.theta, f)
	}
	return out
}

func featuresFor(dates []time.Time) [][2]float64 {
	out := make([][2]float64, len(dates))
	for i, d := range dates {
		out[i] = [2]float64{1, float64(rates.Midnight(d).Unix()) * 1e-9}
	}
	return out
}

func predict(theta [2]float64, f [2]float64) float64 {
	return theta[0]*f[0] + theta[1]*f[1]
}

// cost is half the mean squared error
func cost(theta [2]float64, features [][2]float64, observed []float64) float64 {
	var sum float64
	for i, f := range features {
		d := predict(theta, f) - observed[i]
		sum += d * d
	}
	return sum / (2 * float64(len(observed)))
}
