// Package rates holds the exchange-rate time series shared by the fetcher,
// the estimator and the store.
package rates

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the calendar-date format used on the wire and in storage
const DateLayout = "2006-01-02"

// TimeSeries is a date-ordered sequence of rates for one currency pair.
// Dates are UTC midnights in ascending order and line up with Rates.
type TimeSeries struct {
	Dates []time.Time
	Rates []float64
}

// Point is one dated rate
type Point struct {
	Date time.Time
	Rate float64
}

// FromMap builds a series from date strings, sorting them ascending
func FromMap(byDate map[string]float64) (*TimeSeries, error) {
	points := make([]Point, 0, len(byDate))
	for raw, rate := range byDate {
		d, err := ParseDate(raw)
		if err != nil {
			return nil, err
		}
		points = append(points, Point{Date: d, Rate: rate})
	}
	return FromPoints(points), nil
}

// FromPoints builds a series from unordered points
func FromPoints(points []Point) *TimeSeries {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	ts := &TimeSeries{
		Dates: make([]time.Time, len(sorted)),
		Rates: make([]float64, len(sorted)),
	}
	for i, p := range sorted {
		ts.Dates[i] = p.Date
		ts.Rates[i] = p.Rate
	}
	return ts
}

// Len returns the number of points
func (ts *TimeSeries) Len() int {
	return len(ts.Dates)
}

// Last returns the most recent point; ok is false for an empty series
func (ts *TimeSeries) Last() (Point, bool) {
	if ts == nil || len(ts.Dates) == 0 {
		return Point{}, false
	}
	i := len(ts.Dates) - 1
	return Point{Date: ts.Dates[i], Rate: ts.Rates[i]}, true
}

// Points returns the series as a slice of points
func (ts *TimeSeries) Points() []Point {
	out := make([]Point, len(ts.Dates))
	for i := range ts.Dates {
		out[i] = Point{Date: ts.Dates[i], Rate: ts.Rates[i]}
	}
	return out
}

// ByDate returns the rates keyed by formatted date
func (ts *TimeSeries) ByDate() map[string]float64 {
	out := make(map[string]float64, len(ts.Dates))
	for i, d := range ts.Dates {
		out[FormatDate(d)] = ts.Rates[i]
	}
	return out
}

// ParseDate parses a YYYY-MM-DD string as a UTC midnight
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate formats a date as YYYY-MM-DD
func FormatDate(d time.Time) string {
	return d.UTC().Format(DateLayout)
}

// Midnight truncates t to its UTC calendar date
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FutureDates returns the n-1 days following last: last+1 .. last+(n-1).
// n <= 1 yields no dates.
func FutureDates(last time.Time, n int) []time.Time {
	if n <= 1 {
		return nil
	}
	out := make([]time.Time, 0, n-1)
	for i := 1; i < n; i++ {
		out = append(out, last.AddDate(0, 0, i))
	}
	return out
}
