// Package main provides the entry point for the fuel price scraper CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/api/ok"
	"github.com/andygrunwald/fuel-price-scraper/internal/archive"
	"github.com/andygrunwald/fuel-price-scraper/internal/config"
	"github.com/andygrunwald/fuel-price-scraper/internal/database"
	"github.com/andygrunwald/fuel-price-scraper/internal/kvstore"
	"github.com/andygrunwald/fuel-price-scraper/internal/lock"
	"github.com/andygrunwald/fuel-price-scraper/internal/reconcile"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
	"github.com/andygrunwald/fuel-price-scraper/internal/store/memory"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "none"
	// BuildDate is set at build time.
	BuildDate = "unknown"
)

var cfg *config.Config

func main() {
	var err error
	cfg, err = config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "fuelscraper",
		Short: "Fuel Price Scraper - Danish pump prices, day by day",
		Long: `Fuel Price Scraper keeps a per-day history of Danish fuel pump prices.

It polls the OK price history feed, merges every fetched sample into the stored
records and keeps each superseded price in an append-only history.

Features:
  - Unleaded 95, Octane 100 and Diesel
  - PostgreSQL, SQLite, Badger or in-memory storage
  - Read API with English and Danish price summaries
  - Prometheus metrics endpoint
  - Status endpoint for operational visibility`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return cfg.Validate()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "Store backend (postgres, sqlite, badger, memory)")
	rootCmd.PersistentFlags().StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	rootCmd.PersistentFlags().StringVar(&cfg.BadgerDir, "badger-dir", cfg.BadgerDir, "Badger data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	rootCmd.PersistentFlags().StringVar(&cfg.SourceURL, "source-url", cfg.SourceURL, "OK price history endpoint")
	rootCmd.PersistentFlags().DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout of a single upstream fetch")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.FuelTypes, "fuel-types", cfg.FuelTypes, "Fuel types to reconcile")
	rootCmd.PersistentFlags().StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Archive raw upstream responses below this directory")
	rootCmd.PersistentFlags().StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for run locks shared between instances")
	rootCmd.PersistentFlags().DurationVar(&cfg.LockTTL, "lock-ttl", cfg.LockTTL, "Expiry of a Redis run lock, runs are cancelled before it")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(dayCmd())
	rootCmd.AddCommand(rangeCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger() zerolog.Logger {
	var logger zerolog.Logger

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Logger()
	}

	return logger
}

// openStore opens the configured store backend.
func openStore(logger zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return database.NewPostgres(cfg.PostgresDSN, logger)
	case config.DriverSQLite:
		return database.NewSQLite(cfg.SQLitePath, logger)
	case config.DriverBadger:
		return kvstore.New(cfg.BadgerDir, logger)
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, prices are lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}

// openLocker returns a Redis locker when configured and an in-process one otherwise.
// The returned func releases its resources.
func openLocker(ctx context.Context, logger zerolog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	r, err := lock.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}

// newScraper wires the OK source, locker and optional archive into a Scraper.
// The returned func releases the resources it opened.
func newScraper(ctx context.Context, st store.Store, logger zerolog.Logger, opts ...scraper.Option) (*scraper.Scraper, func(), error) {
	locker, closeLocker, err := openLocker(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening run lock: %w", err)
	}
	cleanup := []func(){closeLocker}

	if cfg.ArchiveDir != "" {
		a, err := archive.New(cfg.ArchiveDir)
		if err != nil {
			closeLocker()
			return nil, nil, fmt.Errorf("opening archive: %w", err)
		}
		cleanup = append(cleanup, func() { _ = a.Close() })
		opts = append(opts, scraper.WithArchive(a))
	}

	opts = append(opts, scraper.WithFetchTimeout(cfg.FetchTimeout))
	if cfg.RedisAddr != "" {
		// Finish before the shared lock expires so no other instance can overlap.
		opts = append(opts, scraper.WithRunTimeout(cfg.LockTTL-cfg.LockTTL/10))
	}
	source := ok.New(logger, cfg.SourceURL, cfg.FetchTimeout)
	s := scraper.New(st, source, reconcile.New(), locker, logger, opts...)

	return s, func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}
