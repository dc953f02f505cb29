// Package models provides shared data types for the fuel price scraper.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FuelType is the category of fuel that partitions all price data.
type FuelType string

const (
	// FuelTypeUnleaded95 is unleaded octane 95.
	FuelTypeUnleaded95 FuelType = "Unleaded95"
	// FuelTypeOctane100 is octane 100.
	FuelTypeOctane100 FuelType = "Octane100"
	// FuelTypeDiesel is diesel.
	FuelTypeDiesel FuelType = "Diesel"
)

// ErrUnknownFuelType is returned when a fuel type name cannot be parsed.
var ErrUnknownFuelType = errors.New("unknown fuel type")

// AllFuelTypes returns every supported fuel type.
func AllFuelTypes() []FuelType {
	return []FuelType{FuelTypeDiesel, FuelTypeOctane100, FuelTypeUnleaded95}
}

// ParseFuelType parses a fuel type name case-insensitively.
func ParseFuelType(s string) (FuelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unleaded95":
		return FuelTypeUnleaded95, nil
	case "octane100":
		return FuelTypeOctane100, nil
	case "diesel":
		return FuelTypeDiesel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFuelType, s)
	}
}

// Valid reports whether f is one of the supported fuel types.
func (f FuelType) Valid() bool {
	switch f {
	case FuelTypeUnleaded95, FuelTypeOctane100, FuelTypeDiesel:
		return true
	}
	return false
}

// PriceSample is a raw (date, price) pair as delivered by an upstream source.
// Both values are kept in their textual form so malformed samples can be
// skipped individually during reconciliation.
type PriceSample struct {
	Date  string `json:"date"`
	Price string `json:"price"`
}

// PriceChange is a price that was current for a date before being superseded.
type PriceChange struct {
	DetectedAt time.Time       `json:"detectedAt"`
	Price      decimal.Decimal `json:"price"`
}

// PriceRecord is the persisted price of one fuel type on one calendar day.
// History holds only superseded prices, oldest first.
type PriceRecord struct {
	FuelType FuelType        `json:"fuelType"`
	Date     Day             `json:"date"`
	Price    decimal.Decimal `json:"price"`
	History  []PriceChange   `json:"prevPrices"`
}

// Key returns the identity of the record.
func (r PriceRecord) Key() RecordKey {
	return RecordKey{FuelType: r.FuelType, Date: r.Date}
}

// Clone returns a deep copy of the record.
func (r PriceRecord) Clone() PriceRecord {
	c := r
	c.History = make([]PriceChange, len(r.History))
	copy(c.History, r.History)
	return c
}

// Equal reports whether two records hold the same values.
func (r PriceRecord) Equal(o PriceRecord) bool {
	if r.FuelType != o.FuelType || r.Date != o.Date || !r.Price.Equal(o.Price) {
		return false
	}
	if len(r.History) != len(o.History) {
		return false
	}
	for i := range r.History {
		if !r.History[i].DetectedAt.Equal(o.History[i].DetectedAt) || !r.History[i].Price.Equal(o.History[i].Price) {
			return false
		}
	}
	return true
}

// RecordKey identifies a price record.
type RecordKey struct {
	FuelType FuelType
	Date     Day
}

func (k RecordKey) String() string {
	return string(k.FuelType) + "/" + k.Date.String()
}

// DayView is the yesterday/today/tomorrow price triple for one fuel type.
type DayView struct {
	Yesterday *PriceRecord `json:"yesterday"`
	Today     *PriceRecord `json:"today"`
	Tomorrow  *PriceRecord `json:"tomorrow"`
}
