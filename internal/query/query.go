// Package query answers read requests against the price store.
package query

import (
	"context"
	"fmt"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

// Service builds views over stored price records.
type Service struct {
	store store.Store
}

// New creates a new Service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// GetDayView returns the records for the day before, on and after ref.
// It returns nil without error when there is no record for ref itself.
func (s *Service) GetDayView(ctx context.Context, fuelType models.FuelType, ref models.Day) (*models.DayView, error) {
	records, err := s.store.GetRange(ctx, fuelType, ref.AddDays(-1), ref.AddDays(1))
	if err != nil {
		return nil, fmt.Errorf("getting prices around %s: %w", ref, err)
	}

	view := &models.DayView{}
	for i := range records {
		r := records[i]
		switch r.Date {
		case ref:
			view.Today = &r
		case ref.AddDays(-1):
			view.Yesterday = &r
		case ref.AddDays(1):
			view.Tomorrow = &r
		}
	}

	if view.Today == nil {
		return nil, nil
	}
	return view, nil
}

// GetRange returns all records within [from, to], oldest first. Reversed
// bounds are swapped.
func (s *Service) GetRange(ctx context.Context, fuelType models.FuelType, from, to models.Day) ([]models.PriceRecord, error) {
	if from > to {
		from, to = to, from
	}
	records, err := s.store.GetRange(ctx, fuelType, from, to)
	if err != nil {
		return nil, fmt.Errorf("getting prices from %s to %s: %w", from, to, err)
	}
	if records == nil {
		records = []models.PriceRecord{}
	}
	return records, nil
}
