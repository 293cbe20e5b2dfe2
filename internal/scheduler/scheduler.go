// Package scheduler runs the pipeline repeatedly on an interval or a cron
// schedule. Runs never overlap; each run starts where the last completed full
// run ended.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/storage"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

// Trigger computes the next fire time after from.
type Trigger interface {
	Next(from time.Time) time.Time
}

// Interval fires at a fixed period.
type Interval time.Duration

// Next returns from plus the interval.
func (i Interval) Next(from time.Time) time.Time {
	return from.Add(time.Duration(i))
}

// NewTrigger builds a cron trigger when cronExpr is set, otherwise an
// interval of intervalHours.
func NewTrigger(cronExpr string, intervalHours int) (Trigger, error) {
	if cronExpr != "" {
		return ParseCron(cronExpr)
	}
	if intervalHours <= 0 {
		return nil, fmt.Errorf("schedule interval must be positive, got %d hours", intervalHours)
	}
	return Interval(time.Duration(intervalHours) * time.Hour), nil
}

// Job performs one run over bounds.
type Job func(ctx context.Context, bounds timerange.Bounds) (*models.RunResult, error)

// RunHistory returns the most recent full run.
type RunHistory interface {
	LastRun(ctx context.Context) (*models.RunResult, error)
}

// Scheduler drives Job from a Trigger.
type Scheduler struct {
	trigger Trigger
	job     Job
	history RunHistory
	logger  *slog.Logger
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
}

// New creates a Scheduler. history may be nil, in which case every run uses
// the default window.
func New(trigger Trigger, job Job, history RunHistory, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		trigger: trigger,
		job:     job,
		history: history,
		logger:  logger.With("component", "scheduler"),
		now:     time.Now,
		after:   time.After,
	}
}

// Start runs the job immediately and then at every trigger time until ctx is
// cancelled. Job failures are logged and do not stop the loop. It returns nil
// on cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started")
	for {
		s.runOnce(ctx)

		next := s.trigger.Next(s.now())
		if next.IsZero() {
			return errors.New("schedule has no future fire time")
		}
		s.logger.Info("next run scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-s.after(time.Until(next)):
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	bounds := s.nextBounds(ctx)
	res, err := s.job(ctx, bounds)
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err)
		return
	}
	s.logger.Info("scheduled run finished",
		"run_id", res.RunID,
		"summarized", res.Summarized,
		"notified", res.Notified)
}

// nextBounds starts the window at the end of the last full run, or falls back
// to the default window when there is no usable history.
func (s *Scheduler) nextBounds(ctx context.Context) timerange.Bounds {
	if s.history == nil {
		return timerange.Bounds{}
	}
	last, err := s.history.LastRun(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading last run failed, using default window", "error", err)
		}
		return timerange.Bounds{}
	}
	if !last.RangeEnd.Before(s.now()) {
		return timerange.Bounds{}
	}
	return timerange.Bounds{Start: last.RangeEnd.UTC().Format(time.RFC3339)}
}
