package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/query"
	"github.com/andygrunwald/fuel-price-scraper/internal/scheduler"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

// Config configures the HTTP server.
type Config struct {
	Addr        string
	JobKey      string
	FuelTypes   []models.FuelType
	StoreDriver string
}

// Server represents the HTTP server for the read API, metrics and status endpoints.
type Server struct {
	server  *http.Server
	handler http.Handler
	logger  zerolog.Logger
}

// NewServer creates a new HTTP server. sched may be nil when no scheduler runs.
func NewServer(
	cfg Config,
	q *query.Service,
	s *scraper.Scraper,
	sched *scheduler.Scheduler,
	st store.Store,
	cache *PriceCache,
	metrics *Metrics,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) *Server {
	logger = logger.With().Str("component", "http").Logger()
	mux := http.NewServeMux()

	prices := &PricesHandler{query: q, cache: cache, logger: logger}
	job := &JobHandler{scraper: s, key: cfg.JobKey, fuelTypes: cfg.FuelTypes, logger: logger}

	// Register handlers
	mux.Handle("/prices", instrument(metrics, "/prices", http.HandlerFunc(prices.DayView)))
	mux.Handle("/prices/all", instrument(metrics, "/prices/all", http.HandlerFunc(prices.All)))
	mux.Handle("/job", instrument(metrics, "/job", job))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/status", NewStatusHandler(s, sched, st, cfg.StoreDriver))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Debug().Err(err).Msg("failed to write health response")
		}
	})

	handler := cors(mux)
	return &Server{
		server: &http.Server{
			Addr:        cfg.Addr,
			Handler:     handler,
			ReadTimeout: 10 * time.Second,
			// /job runs a full reconciliation before it answers.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		handler: handler,
		logger:  logger,
	}
}

// Handler returns the root handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func instrument(m *Metrics, name string, h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	return promhttp.InstrumentHandlerCounter(
		m.HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"handler": name}),
		h,
	)
}

// cors allows every origin, answering preflight requests directly.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,POST,DELETE,PATCH")
			if h := r.Header.Get("Access-Control-Request-Headers"); h != "" {
				w.Header().Set("Access-Control-Allow-Headers", h)
				w.Header().Add("Vary", "Access-Control-Request-Headers")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
