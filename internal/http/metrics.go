// Package http provides the read API and the operational endpoints.
package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/reconcile"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// Upstream request metrics
	SourceRequestsTotal   *prometheus.CounterVec
	SourceRequestDuration *prometheus.HistogramVec

	// Run metrics
	RunsTotal           *prometheus.CounterVec
	LastRunTimestamp    *prometheus.GaugeVec
	RecordsWrittenTotal *prometheus.CounterVec
	SampleWarningsTotal *prometheus.CounterVec
	CurrentPriceDKK     *prometheus.GaugeVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Read API metrics
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SourceRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_source_requests_total",
				Help: "Total number of upstream requests by source, fuel type and status",
			},
			[]string{"source", "fuel_type", "status"},
		),
		SourceRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelscraper_source_request_duration_seconds",
				Help:    "Upstream request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_runs_total",
				Help: "Total number of reconciliation runs by fuel type and status",
			},
			[]string{"fuel_type", "status"},
		),
		LastRunTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelscraper_last_run_timestamp",
				Help: "Timestamp of the last successful run",
			},
			[]string{"fuel_type"},
		),
		RecordsWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_records_written_total",
				Help: "Total number of price records written by fuel type and kind",
			},
			[]string{"fuel_type", "kind"},
		),
		SampleWarningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_sample_warnings_total",
				Help: "Total number of skipped upstream samples by fuel type",
			},
			[]string{"fuel_type"},
		),
		CurrentPriceDKK: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelscraper_current_price_dkk",
				Help: "Today's fuel price in DKK per liter",
			},
			[]string{"fuel_type"},
		),
		StoreOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_store_operations_total",
				Help: "Total number of store operations by type and status",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelscraper_store_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_http_requests_total",
				Help: "Total number of read API requests by handler, method and code",
			},
			[]string{"handler", "method", "code"},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveFetch records an upstream request.
func (m *Metrics) ObserveFetch(source string, fuelType models.FuelType, duration time.Duration, err error) {
	m.SourceRequestsTotal.WithLabelValues(source, string(fuelType), status(err)).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveStore records a store operation.
func (m *Metrics) ObserveStore(op string, duration time.Duration, err error) {
	m.StoreOperationsTotal.WithLabelValues(op, status(err)).Inc()
	m.StoreOperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveReconcile records the write set of a reconciliation.
func (m *Metrics) ObserveReconcile(fuelType models.FuelType, result reconcile.Result) {
	m.RecordsWrittenTotal.WithLabelValues(string(fuelType), "inserted").Add(float64(result.Inserted))
	m.RecordsWrittenTotal.WithLabelValues(string(fuelType), "updated").Add(float64(result.Updated))
	m.SampleWarningsTotal.WithLabelValues(string(fuelType)).Add(float64(len(result.Warnings)))

	today := models.Today()
	for _, r := range result.Records {
		if r.Date == today {
			m.CurrentPriceDKK.WithLabelValues(string(fuelType)).Set(r.Price.InexactFloat64())
		}
	}
}

// ObserveRun records the end of a run for a fuel type.
func (m *Metrics) ObserveRun(fuelType models.FuelType, at time.Time, err error) {
	m.RunsTotal.WithLabelValues(string(fuelType), status(err)).Inc()
	if err == nil {
		m.LastRunTimestamp.WithLabelValues(string(fuelType)).Set(float64(at.Unix()))
	}
}
