// Package store defines the price store contract shared by all storage backends.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// ErrInvalidRecord is returned when a batch contains a malformed record.
// The whole batch is rejected and nothing is written.
var ErrInvalidRecord = errors.New("invalid price record")

// Store persists price records keyed by fuel type and calendar day.
//
// Get returns (nil, nil) when no record exists. GetRange is inclusive on both
// ends and always returns records sorted by date, oldest first. Upsert is
// atomic per batch and idempotent for identical records.
type Store interface {
	Get(ctx context.Context, fuelType models.FuelType, day models.Day) (*models.PriceRecord, error)
	GetRange(ctx context.Context, fuelType models.FuelType, from, to models.Day) ([]models.PriceRecord, error)
	Upsert(ctx context.Context, records []models.PriceRecord) error
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Validate checks a write batch. It fails on the first malformed record.
func Validate(records []models.PriceRecord) error {
	seen := make(map[models.RecordKey]struct{}, len(records))
	for i, r := range records {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("%w: record %d (%s): %v", ErrInvalidRecord, i, r.Key(), err)
		}
		if _, dup := seen[r.Key()]; dup {
			return fmt.Errorf("%w: record %d (%s): duplicate key in batch", ErrInvalidRecord, i, r.Key())
		}
		seen[r.Key()] = struct{}{}
	}
	return nil
}

func validateRecord(r models.PriceRecord) error {
	if !r.FuelType.Valid() {
		return fmt.Errorf("unknown fuel type %q", r.FuelType)
	}
	if r.Price.IsNegative() {
		return fmt.Errorf("negative price %s", r.Price)
	}
	for j, h := range r.History {
		if h.DetectedAt.IsZero() {
			return fmt.Errorf("history entry %d has no detection time", j)
		}
		if h.Price.IsNegative() {
			return fmt.Errorf("history entry %d has negative price %s", j, h.Price)
		}
		if j > 0 && h.DetectedAt.Before(r.History[j-1].DetectedAt) {
			return fmt.Errorf("history entry %d is older than its predecessor", j)
		}
	}
	return nil
}
