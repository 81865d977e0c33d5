package alert

import (
	"context"
	"time"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/core/failfast"
)

// Scheduler runs a Checker at a fixed rate
type Scheduler struct {
	checker  *Checker
	interval time.Duration
	logger   core.Logger
}

// NewScheduler creates a scheduler (fail-fast on a non-positive interval)
func NewScheduler(checker *Checker, interval time.Duration, logger core.Logger) *Scheduler {
	failfast.NotNil(checker, "checker")
	failfast.If(interval > 0, "alert interval must be positive, got %s", interval)
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Scheduler{checker: checker, interval: interval, logger: logger}
}

// Run checks immediately and then once per interval until ctx is done.
// Ticks are anchored to the start time, so a slow check does not shift
// later runs. Failed checks are logged and do not stop the schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Infof("Executing alert job with rate threshold %v with an interval of %s.",
		s.checker.cfg.Threshold, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.logger.Info("Alert job running.")
	if _, err := s.checker.Check(ctx); err != nil {
		s.logger.Errorf("alert check failed: %v", err)
	}
	s.logger.Info("Alert job executed.")
}
