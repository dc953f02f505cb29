package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
)

type countingRunner struct {
	runs atomic.Int32
}

func (r *countingRunner) RunAll(_ context.Context, fuelTypes []models.FuelType) scraper.RunReport {
	r.runs.Add(1)
	return scraper.RunReport{RunID: "test", Fuels: make([]scraper.FuelReport, len(fuelTypes))}
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(&countingRunner{}, nil, 0, zerolog.Nop())
	assert.Equal(t, DefaultInterval, s.interval)
}

func TestCalculateNextRunTime(t *testing.T) {
	s := New(&countingRunner{}, nil, 90*time.Minute, zerolog.Nop())
	base := time.Date(2024, 5, 17, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 18, 0, 30, 0, 0, time.UTC), s.calculateNextRunTime(base))
}

func TestStart_RunsImmediatelyAndOnInterval(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, models.AllFuelTypes(), 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return runner.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.IsRunning())
	assert.NotNil(t, s.LastRunAt())
	assert.False(t, s.NextRunAt().IsZero())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.IsRunning())
}

type blockingRunner struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func (r *blockingRunner) RunAll(_ context.Context, _ []models.FuelType) scraper.RunReport {
	close(r.started)
	<-r.release
	r.finished.Store(true)
	return scraper.RunReport{RunID: "test"}
}

func TestStart_WaitsForInFlightRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := New(runner, models.AllFuelTypes(), time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	<-runner.started
	cancel()

	select {
	case <-done:
		t.Fatal("scheduler returned while a run was still in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.True(t, runner.finished.Load())
}
