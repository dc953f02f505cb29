// Package scheduler runs reconciliation on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
)

// DefaultInterval is the time between two runs.
const DefaultInterval = time.Hour

// Runner executes a run over the given fuel types.
type Runner interface {
	RunAll(ctx context.Context, fuelTypes []models.FuelType) scraper.RunReport
}

// Scheduler triggers runs once at start and then after every interval.
type Scheduler struct {
	runner    Runner
	fuelTypes []models.FuelType
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	nextRunAt time.Time
	lastRunAt *time.Time
	running   bool
}

// New creates a new Scheduler. A non-positive interval uses DefaultInterval.
func New(r Runner, fuelTypes []models.FuelType, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:    r,
		fuelTypes: fuelTypes,
		interval:  interval,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// Start runs once immediately and then on every tick. It blocks until the
// context is cancelled and returns only after an in-flight run has finished.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("starting scheduler")

	s.run(ctx)
	next := s.scheduleNext()

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.run(ctx)
			next = s.scheduleNext()
			timer.Reset(time.Until(next))
		}
	}
}

// calculateNextRunTime returns the next run time after a run that finished at t.
func (s *Scheduler) calculateNextRunTime(t time.Time) time.Time {
	return t.Add(s.interval)
}

func (s *Scheduler) scheduleNext() time.Time {
	next := s.calculateNextRunTime(s.now())
	s.mu.Lock()
	s.nextRunAt = next
	s.mu.Unlock()

	s.logger.Info().
		Time("nextRun", next).
		Dur("duration", s.interval).
		Msg("next run scheduled")
	return next
}

func (s *Scheduler) run(ctx context.Context) {
	s.logger.Info().Msg("running scheduled reconciliation")

	now := s.now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	report := s.runner.RunAll(ctx, s.fuelTypes)
	if n := report.Failures(); n > 0 {
		s.logger.Error().Int("failures", n).Str("run_id", report.RunID).Msg("scheduled run had failures")
		return
	}
	s.logger.Info().Str("run_id", report.RunID).Msg("scheduled run completed")
}

// NextRunAt returns the time of the next scheduled run.
func (s *Scheduler) NextRunAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRunAt
}

// LastRunAt returns the start time of the last run.
func (s *Scheduler) LastRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRunAt
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
