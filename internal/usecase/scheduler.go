package usecase

import (
	"context"
	"log/slog"
	"time"

	"OpportunityMonitor/internal/ports"
)

// Job is one scheduled unit of work, typically a full monitor run.
type Job func(ctx context.Context, trigger time.Time) error

// Scheduler wires the cron driver with a monitor run.
type Scheduler struct {
	driver ports.Scheduler
	job    Job
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, job: job, logger: logger}
}

// Start registers the job with the driver. A failed run is logged and the
// schedule keeps going.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.job == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("scheduled run triggered", "trigger", trigger)
		if err := s.job(ctx, trigger); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	})
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
