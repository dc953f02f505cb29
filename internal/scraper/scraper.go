// Package scraper runs the fetch, reconcile and store cycle for all fuel types.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/lock"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/reconcile"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

// DefaultFetchTimeout bounds a single upstream fetch.
const DefaultFetchTimeout = 30 * time.Second

// ErrRunInProgress is returned when another run holds the lock of a fuel type.
var ErrRunInProgress = errors.New("run already in progress")

// Archiver stores raw upstream responses.
type Archiver interface {
	Save(fuelType models.FuelType, fetchedAt time.Time, body []byte) (string, error)
}

// MetricsRecorder receives operational measurements of a run.
type MetricsRecorder interface {
	ObserveFetch(source string, fuelType models.FuelType, duration time.Duration, err error)
	ObserveStore(op string, duration time.Duration, err error)
	ObserveReconcile(fuelType models.FuelType, result reconcile.Result)
	ObserveRun(fuelType models.FuelType, at time.Time, err error)
}

// ChangeListener is called after records of a fuel type were written.
type ChangeListener func(fuelType models.FuelType, records []models.PriceRecord)

// Metrics holds run metrics for a fuel type.
type Metrics struct {
	mu               sync.RWMutex
	TotalRuns        int64
	TotalErrors      int64
	LastRunAt        *time.Time
	LastRunSuccess   bool
	LastResponseTime time.Duration
	LastInserted     int
	LastUpdated      int
	LastWarnings     int
	LastError        *string
}

// GetSnapshot returns a thread-safe snapshot of the metrics.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		TotalRuns:        m.TotalRuns,
		TotalErrors:      m.TotalErrors,
		LastRunAt:        m.LastRunAt,
		LastRunSuccess:   m.LastRunSuccess,
		LastResponseTime: m.LastResponseTime,
		LastInserted:     m.LastInserted,
		LastUpdated:      m.LastUpdated,
		LastWarnings:     m.LastWarnings,
		LastError:        m.LastError,
	}
}

func (m *Metrics) record(at time.Time, report FuelReport, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRuns++
	m.LastRunAt = &at
	m.LastResponseTime = report.FetchDuration
	m.LastInserted = report.Inserted
	m.LastUpdated = report.Updated
	m.LastWarnings = len(report.Warnings)
	if err != nil {
		m.TotalErrors++
		m.LastRunSuccess = false
		errStr := err.Error()
		m.LastError = &errStr
		return
	}
	m.LastRunSuccess = true
	m.LastError = nil
}

// MetricsSnapshot is a thread-safe copy of Metrics data.
type MetricsSnapshot struct {
	TotalRuns        int64
	TotalErrors      int64
	LastRunAt        *time.Time
	LastRunSuccess   bool
	LastResponseTime time.Duration
	LastInserted     int
	LastUpdated      int
	LastWarnings     int
	LastError        *string
}

// FuelReport is the outcome of a run for one fuel type.
type FuelReport struct {
	FuelType      models.FuelType     `json:"fuelType"`
	Inserted      int                 `json:"inserted"`
	Updated       int                 `json:"updated"`
	Unchanged     int                 `json:"unchanged"`
	Warnings      []reconcile.Warning `json:"warnings,omitempty"`
	Skipped       bool                `json:"skipped,omitempty"`
	FetchDuration time.Duration       `json:"-"`
	Err           error               `json:"-"`
	Error         string              `json:"error,omitempty"`
}

// Failed reports whether the run failed. Skipped runs are not failures.
func (r FuelReport) Failed() bool {
	return r.Err != nil && !r.Skipped
}

// RunReport is the outcome of a run over several fuel types.
type RunReport struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	Fuels     []FuelReport  `json:"fuels"`
}

// Failures returns the number of fuel types whose run failed.
func (r RunReport) Failures() int {
	n := 0
	for _, f := range r.Fuels {
		if f.Failed() {
			n++
		}
	}
	return n
}

// Scraper orchestrates fetching and reconciling prices.
type Scraper struct {
	store        store.Store
	source       api.Source
	reconciler   *reconcile.Reconciler
	locker       lock.Locker
	logger       zerolog.Logger
	fetchTimeout time.Duration
	runTimeout   time.Duration
	archive      Archiver
	recorder     MetricsRecorder
	listeners    []ChangeListener

	mu          sync.RWMutex
	fuelMetrics map[models.FuelType]*Metrics
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithFetchTimeout bounds each upstream fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithRunTimeout bounds a whole run of one fuel type, store access included.
// With an expiring run lock it has to stay below the lock's TTL.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// WithArchive archives every raw upstream response.
func WithArchive(a Archiver) Option {
	return func(s *Scraper) {
		s.archive = a
	}
}

// WithMetrics reports measurements to r.
func WithMetrics(r MetricsRecorder) Option {
	return func(s *Scraper) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithChangeListener registers fn to be called after records were written.
func WithChangeListener(fn ChangeListener) Option {
	return func(s *Scraper) {
		s.listeners = append(s.listeners, fn)
	}
}

// New creates a new Scraper.
func New(st store.Store, source api.Source, reconciler *reconcile.Reconciler, locker lock.Locker, logger zerolog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		store:        st,
		source:       source,
		reconciler:   reconciler,
		locker:       locker,
		logger:       logger.With().Str("component", "scraper").Logger(),
		fetchTimeout: DefaultFetchTimeout,
		recorder:     nopRecorder{},
		fuelMetrics:  make(map[models.FuelType]*Metrics),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceName returns the name of the configured upstream source.
func (s *Scraper) SourceName() string {
	return s.source.Name()
}

// GetMetrics returns the metrics for a fuel type.
func (s *Scraper) GetMetrics(fuelType models.FuelType) *Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.fuelMetrics[fuelType]
	if !ok {
		m = &Metrics{}
		s.fuelMetrics[fuelType] = m
	}
	return m
}

// Snapshots returns the metrics of every fuel type that ran at least once.
func (s *Scraper) Snapshots() map[models.FuelType]MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.FuelType]MetricsSnapshot, len(s.fuelMetrics))
	for f, m := range s.fuelMetrics {
		out[f] = m.GetSnapshot()
	}
	return out
}

// RunAll runs all given fuel types in parallel. A failing fuel type never
// stops the others.
func (s *Scraper) RunAll(ctx context.Context, fuelTypes []models.FuelType) RunReport {
	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Fuels:     make([]FuelReport, len(fuelTypes)),
	}
	logger := s.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Int("fuel_types", len(fuelTypes)).Msg("starting run")

	var g errgroup.Group
	for i, fuelType := range fuelTypes {
		g.Go(func() error {
			report.Fuels[i], _ = s.runFuel(ctx, report.RunID, fuelType)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.StartedAt)
	logger.Info().
		Int("failures", report.Failures()).
		Dur("duration", report.Duration).
		Msg("run completed")

	return report
}

// RunFuel runs a single fuel type.
func (s *Scraper) RunFuel(ctx context.Context, fuelType models.FuelType) (FuelReport, error) {
	return s.runFuel(ctx, uuid.NewString(), fuelType)
}

func (s *Scraper) runFuel(ctx context.Context, runID string, fuelType models.FuelType) (FuelReport, error) {
	report := FuelReport{FuelType: fuelType}
	logger := s.logger.With().
		Str("run_id", runID).
		Str("fuel_type", string(fuelType)).
		Logger()

	fail := func(err error) (FuelReport, error) {
		report.Err = err
		report.Error = err.Error()
		return report, err
	}

	unlock, ok, err := s.locker.TryLock(ctx, fuelType)
	if err != nil {
		logger.Error().Err(err).Msg("failed to acquire run lock")
		return fail(fmt.Errorf("acquiring run lock: %w", err))
	}
	if !ok {
		logger.Info().Msg("run already in progress, skipping")
		report.Skipped = true
		return fail(ErrRunInProgress)
	}
	defer unlock()

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	err = s.reconcileFuel(ctx, logger, fuelType, &report)
	now := time.Now()
	s.GetMetrics(fuelType).record(now, report, err)
	s.recorder.ObserveRun(fuelType, now, err)
	if err != nil {
		return fail(err)
	}

	logger.Info().
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("unchanged", report.Unchanged).
		Int("warnings", len(report.Warnings)).
		Msg("reconciled prices")
	return report, nil
}

func (s *Scraper) reconcileFuel(ctx context.Context, logger zerolog.Logger, fuelType models.FuelType, report *FuelReport) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	start := time.Now()
	res, err := s.source.Fetch(fetchCtx, fuelType)
	cancel()
	report.FetchDuration = time.Since(start)
	s.recorder.ObserveFetch(s.source.Name(), fuelType, report.FetchDuration, err)
	if err != nil {
		logger.Error().Err(err).Dur("duration", report.FetchDuration).Msg("failed to fetch prices")
		return err
	}

	logger.Debug().
		Int("samples", len(res.Samples)).
		Dur("duration", report.FetchDuration).
		Msg("fetched prices")

	if s.archive != nil && len(res.RawResponse) > 0 {
		path, err := s.archive.Save(fuelType, res.FetchedAt, res.RawResponse)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to archive raw response")
		} else {
			logger.Debug().Str("path", path).Msg("archived raw response")
		}
	}

	var current []models.PriceRecord
	if from, to, ok := reconcile.SampleSpan(res.Samples); ok {
		start := time.Now()
		current, err = s.store.GetRange(ctx, fuelType, from, to)
		s.recorder.ObserveStore("get_range", time.Since(start), err)
		if err != nil {
			logger.Error().Err(err).Msg("failed to read current prices")
			return fmt.Errorf("reading current prices: %w", err)
		}
	}

	result := s.reconciler.Reconcile(fuelType, res.Samples, current)
	s.recorder.ObserveReconcile(fuelType, result)
	for _, w := range result.Warnings {
		logger.Warn().
			Str("date", w.Date).
			Str("price", w.Price).
			Str("reason", w.Reason).
			Msg("skipping price sample")
	}

	report.Inserted = result.Inserted
	report.Updated = result.Updated
	report.Unchanged = result.Unchanged
	report.Warnings = result.Warnings

	if result.Empty() {
		return nil
	}

	start = time.Now()
	err = s.store.Upsert(ctx, result.Records)
	s.recorder.ObserveStore("upsert", time.Since(start), err)
	if err != nil {
		logger.Error().Err(err).Int("records", len(result.Records)).Msg("failed to store prices")
		report.Inserted, report.Updated = 0, 0
		return fmt.Errorf("storing prices: %w", err)
	}

	for _, fn := range s.listeners {
		fn(fuelType, result.Records)
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, models.FuelType, time.Duration, error) {}
func (nopRecorder) ObserveStore(string, time.Duration, error)                  {}
func (nopRecorder) ObserveReconcile(models.FuelType, reconcile.Result)         {}
func (nopRecorder) ObserveRun(models.FuelType, time.Time, error)               {}
