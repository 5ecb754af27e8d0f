// Package sweep periodically repairs pairs whose reconciliation was missed.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month,
// dow) and descriptors such as @hourly, matching config validation.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Sweeper repairs one channel.
type Sweeper interface {
	Kind() string
	Sweep(ctx context.Context) (int, error)
}

// Runner sweeps every channel on a cron schedule.
type Runner struct {
	schedule cron.Schedule
	sweepers []Sweeper
	log      *slog.Logger
	now      func() time.Time
}

// NewRunner creates a Runner for a cron schedule.
func NewRunner(schedule string, logger *slog.Logger, sweepers ...Sweeper) (*Runner, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("sweep: parse schedule %q: %w", schedule, err)
	}
	if len(sweepers) == 0 {
		return nil, fmt.Errorf("sweep: at least one sweeper is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{schedule: sched, sweepers: sweepers, log: logger, now: time.Now}, nil
}

// RunOnce sweeps every channel and returns the repaired pair count per kind.
// A failing channel does not stop the others.
func (r *Runner) RunOnce(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(r.sweepers))
	var errs []error
	for _, s := range r.sweepers {
		n, err := s.Sweep(ctx)
		out[s.Kind()] = n
		if err != nil {
			r.log.Error("sweep failed", "kind", s.Kind(), "repaired", n, "error", err)
			errs = append(errs, fmt.Errorf("sweep: %s: %w", s.Kind(), err))
			continue
		}
		r.log.Debug("sweep done", "kind", s.Kind(), "repaired", n)
	}
	return out, errors.Join(errs...)
}

// Run sweeps on schedule until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(r.untilNext())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		// Errors are already logged per channel.
		_, _ = r.RunOnce(ctx)
	}
}

// untilNext returns the wait until the next scheduled run.
func (r *Runner) untilNext() time.Duration {
	now := r.now()
	d := r.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
