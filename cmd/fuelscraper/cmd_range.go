package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/query"
)

func rangeCmd() *cobra.Command {
	var fuelTypeStr, fromStr, toStr string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "range",
		Short: "List stored prices",
		Long:  "Lists the stored prices of a fuel type between two days, including superseded prices.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			fuelType, err := models.ParseFuelType(fuelTypeStr)
			if err != nil {
				return err
			}

			if fromStr == "" {
				return fmt.Errorf("--from is required")
			}

			from, err := models.ParseDay(fromStr)
			if err != nil {
				return fmt.Errorf("parsing --from date: %w", err)
			}

			to := models.Today()
			if toStr != "" {
				to, err = models.ParseDay(toStr)
				if err != nil {
					return fmt.Errorf("parsing --to date: %w", err)
				}
			}

			logger.Debug().
				Str("fuelType", string(fuelType)).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("listing prices")

			// Connect to store
			st, err := openStore(logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			records, err := query.New(st).GetRange(context.Background(), fuelType, from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tPRICE\tCHANGES")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\n", r.Date, r.Price, len(r.History))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&fuelTypeStr, "fuel-type", string(models.FuelTypeUnleaded95), "Fuel type (Unleaded95, Octane100, Diesel)")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start date (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&toStr, "to", "", "End date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the records as JSON")

	return cmd
}
