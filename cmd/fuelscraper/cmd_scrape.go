package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func scrapeCmd() *cobra.Command {
	var printReport bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run a one-time reconciliation",
		Long:  "Fetches the current price history for the configured fuel types once and stores every new or changed price.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			fuelTypes, err := cfg.ParsedFuelTypes()
			if err != nil {
				return err
			}

			logger.Info().
				Strs("fuelTypes", cfg.FuelTypes).
				Str("store", cfg.StoreDriver).
				Msg("running one-time scrape")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Connect to store
			st, err := openStore(logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			// Create scraper
			s, closeScraper, err := newScraper(ctx, st, logger)
			if err != nil {
				return err
			}
			defer closeScraper()

			// Run scrape
			report := s.RunAll(ctx, fuelTypes)

			if printReport {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encoding report: %w", err)
				}
			}

			if n := report.Failures(); n > 0 {
				return fmt.Errorf("scrape failed for %d of %d fuel types", n, len(fuelTypes))
			}

			logger.Info().Msg("scrape completed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printReport, "report", false, "Print the run report as JSON")

	return cmd
}
