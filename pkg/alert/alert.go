// Package alert notifies a user when the exchange rate crosses a threshold.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Subject is the e-mail subject of every alert
const Subject = "Automated Exchanger Alert"

// Alert is one threshold crossing with the estimate that accompanied it
type Alert struct {
	Base        string             `json:"base"`
	Target      string             `json:"target"`
	CurrentRate float64            `json:"currentRate"`
	Threshold   float64            `json:"threshold"`
	FutureRates map[string]float64 `json:"futureRates"`
	CheckedAt   time.Time          `json:"checkedAt"`
}

// Text renders the plain-text message body
func (a Alert) Text() string {
	dates := make([]string, 0, len(a.FutureRates))
	for d := range a.FutureRates {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	estimates := make([]string, len(dates))
	for i, d := range dates {
		estimates[i] = fmt.Sprintf("%s: %.4f", d, a.FutureRates[d])
	}
	return fmt.Sprintf(
		"Note that the current rate for %s to %s is %v. The rate is estimated to be the following in the upcoming %d days: [%s].",
		a.Base, a.Target, a.CurrentRate, len(dates), strings.Join(estimates, ", "),
	)
}

// Notifier delivers an alert
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// MultiNotifier delivers to every notifier and joins their errors
type MultiNotifier []Notifier

// Notify implements Notifier
func (m MultiNotifier) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
