package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// ErrInvalidInterval is returned for non-positive probe intervals.
var ErrInvalidInterval = errors.New("probe interval must be positive")

// Scheduler runs a probe job on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *ProbeJob
	interval  time.Duration
	logger    zerolog.Logger
}

// SchedulerConfig holds configuration for a Scheduler.
type SchedulerConfig struct {
	Job      *ProbeJob
	Interval time.Duration
	Logger   zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A slow run must not overlap the next one.
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		job:       cfg.Job,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
	}
}

// Start schedules the probe job, runs it once immediately and returns.
// Runs use ctx, so cancelling it aborts in-flight probes.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return ErrInvalidInterval
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.job.Run(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Dur("interval", s.interval).Msg("probe scheduler started")
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info().Interface("metrics", s.job.MetricsSnapshot()).Msg("probe scheduler stopped")
}
