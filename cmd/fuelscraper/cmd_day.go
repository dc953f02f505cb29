package main

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/query"
	"github.com/andygrunwald/fuel-price-scraper/internal/summary"
)

func dayCmd() *cobra.Command {
	var fuelTypeStr, dateStr, lang string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "day",
		Short: "Show the prices around a day",
		Long:  "Prints yesterday's, today's and tomorrow's stored price for a fuel type relative to --date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			fuelType, err := models.ParseFuelType(fuelTypeStr)
			if err != nil {
				return err
			}

			day := models.Today()
			if dateStr != "" {
				day, err = models.ParseDay(dateStr)
				if err != nil {
					return fmt.Errorf("parsing --date: %w", err)
				}
			}

			// Connect to store
			st, err := openStore(logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			view, err := query.New(st).GetDayView(context.Background(), fuelType, day)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}

			_, err = fmt.Fprintln(out, summary.Text(summary.ParseLanguage(lang), view, fuelType))
			return err
		},
	}

	cmd.Flags().StringVar(&fuelTypeStr, "fuel-type", string(models.FuelTypeUnleaded95), "Fuel type (Unleaded95, Octane100, Diesel)")
	cmd.Flags().StringVar(&dateStr, "date", "", "Day (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&lang, "lang", string(summary.English), "Summary language (en, da)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the records as JSON instead of a summary")

	return cmd
}
