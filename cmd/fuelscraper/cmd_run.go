package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/http"
	"github.com/andygrunwald/fuel-price-scraper/internal/query"
	"github.com/andygrunwald/fuel-price-scraper/internal/scheduler"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the continuous scraper service",
		Long:  "Starts the fuel price scraper with an internal scheduler that reconciles prices on a fixed interval, and the HTTP read API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			fuelTypes, err := cfg.ParsedFuelTypes()
			if err != nil {
				return err
			}

			logger.Info().
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Str("httpAddr", cfg.HTTPAddr).
				Str("store", cfg.StoreDriver).
				Dur("interval", cfg.ScrapeInterval).
				Strs("fuelTypes", cfg.FuelTypes).
				Msg("starting fuel price scraper")

			// Setup signal handling
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Connect to store
			st, err := openStore(logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			// Metrics and response cache are shared by scraper and HTTP server
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := http.NewMetrics(reg)
			cache := http.NewPriceCache(cfg.CacheSizeMB, cfg.CacheTTL, logger)

			// Create scraper
			s, closeScraper, err := newScraper(ctx, st, logger,
				scraper.WithMetrics(metrics),
				scraper.WithChangeListener(cache.Invalidate),
			)
			if err != nil {
				return err
			}
			defer closeScraper()

			// Create scheduler
			sched := scheduler.New(s, fuelTypes, cfg.ScrapeInterval, logger)

			// Create HTTP server
			httpServer := http.NewServer(
				http.Config{
					Addr:        cfg.HTTPAddr,
					JobKey:      cfg.JobKey,
					FuelTypes:   fuelTypes,
					StoreDriver: cfg.StoreDriver,
				},
				query.New(st), s, sched, st, cache, metrics, reg, logger,
			)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			// Start HTTP server in goroutine
			go func() {
				if err := httpServer.Start(); err != nil {
					logger.Error().Err(err).Msg("HTTP server error")
					cancel()
				}
			}()

			// Start scheduler in goroutine
			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("scheduler error")
					cancel()
				}
			}()

			// Wait for signal
			select {
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			case <-ctx.Done():
			}
			cancel()

			// Graceful shutdown
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP server shutdown error")
			}

			// Wait for a running reconciliation before the store is closed
			select {
			case <-schedDone:
			case <-shutdownCtx.Done():
				logger.Warn().Msg("scheduler did not stop within the shutdown timeout")
			}

			logger.Info().Msg("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address for the read API, /metrics and /status")
	cmd.Flags().DurationVar(&cfg.ScrapeInterval, "interval", cfg.ScrapeInterval, "Time between reconciliation runs")
	cmd.Flags().StringVar(&cfg.JobKey, "job-key", cfg.JobKey, "Shared secret for the /job endpoint (empty disables it)")
	cmd.Flags().IntVar(&cfg.CacheSizeMB, "cache-size", cfg.CacheSizeMB, "Response cache size in MB (0 disables caching)")

	return cmd
}
