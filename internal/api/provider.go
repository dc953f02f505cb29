// Package api provides the interface and types for upstream price sources.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Source fetches the recent price history of a fuel type from an upstream.
type Source interface {
	// Name returns the source identifier.
	Name() string

	// Fetch returns the samples currently published for the fuel type.
	// Malformed items are passed through as samples; only transport,
	// status and body errors fail the fetch.
	Fetch(ctx context.Context, fuelType models.FuelType) (FetchResult, error)
}

// FetchResult is the outcome of a successful fetch.
type FetchResult struct {
	Samples     []models.PriceSample
	RawResponse []byte
	FetchedAt   time.Time
}

// FetchError is returned when an upstream could not be reached or answered
// with something unusable.
type FetchError struct {
	Source     string
	FuelType   models.FuelType
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s prices from %s: status %d: %v", e.FuelType, e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s prices from %s: %v", e.FuelType, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
