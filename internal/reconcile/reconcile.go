// Package reconcile merges freshly fetched price samples into persisted price records.
package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Warning describes a single item that was skipped during reconciliation.
type Warning struct {
	Date   string `json:"date"`
	Price  string `json:"price"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("date=%q price=%q: %s", w.Date, w.Price, w.Reason)
}

// Result is the minimal write set produced by a reconciliation.
type Result struct {
	// Records holds inserted and updated records in order of first emission.
	Records   []models.PriceRecord
	Inserted  int
	Updated   int
	Unchanged int
	Warnings  []Warning
}

// Empty reports whether there is nothing to write.
func (r Result) Empty() bool {
	return len(r.Records) == 0
}

// Reconciler computes write sets. It performs no I/O.
type Reconciler struct {
	now func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the clock used to timestamp detected price changes.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a new Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile compares samples for one fuel type against the current records and
// returns the records that have to be written. Unchanged dates are omitted.
// When a date appears more than once in samples, the last valid sample wins and
// is compared against the current record only.
func (r *Reconciler) Reconcile(fuelType models.FuelType, samples []models.PriceSample, current []models.PriceRecord) Result {
	var res Result

	index := make(map[models.Day]models.PriceRecord, len(current))
	for _, rec := range current {
		if _, dup := index[rec.Date]; dup {
			res.Warnings = append(res.Warnings, Warning{
				Date:   rec.Date.String(),
				Price:  rec.Price.String(),
				Reason: "duplicate current record, keeping first",
			})
			continue
		}
		index[rec.Date] = rec
	}

	// latest valid sample price per date, dates in order of first appearance
	latest := make(map[models.Day]decimal.Decimal)
	var order []models.Day
	for _, s := range samples {
		day, err := models.ParseDay(s.Date)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Date: s.Date, Price: s.Price, Reason: err.Error()})
			continue
		}
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Date: s.Date, Price: s.Price, Reason: fmt.Sprintf("invalid price: %v", err)})
			continue
		}
		if price.IsNegative() {
			res.Warnings = append(res.Warnings, Warning{Date: s.Date, Price: s.Price, Reason: "negative price"})
			continue
		}
		if _, seen := latest[day]; !seen {
			order = append(order, day)
		}
		latest[day] = price
	}

	detectedAt := r.now()
	for _, day := range order {
		price := latest[day]
		existing, ok := index[day]
		switch {
		case !ok:
			res.Records = append(res.Records, models.PriceRecord{
				FuelType: fuelType,
				Date:     day,
				Price:    price,
				History:  []models.PriceChange{},
			})
			res.Inserted++
		case existing.Price.Equal(price):
			res.Unchanged++
		default:
			history := make([]models.PriceChange, len(existing.History), len(existing.History)+1)
			copy(history, existing.History)
			res.Records = append(res.Records, models.PriceRecord{
				FuelType: fuelType,
				Date:     day,
				Price:    price,
				History:  append(history, models.PriceChange{DetectedAt: detectedAt, Price: existing.Price}),
			})
			res.Updated++
		}
	}

	return res
}

// SampleSpan returns the earliest and latest parseable dates among samples.
// ok is false when no sample carries a valid date.
func SampleSpan(samples []models.PriceSample) (from, to models.Day, ok bool) {
	for _, s := range samples {
		d, err := models.ParseDay(s.Date)
		if err != nil {
			continue
		}
		if !ok || d < from {
			from = d
		}
		if !ok || d > to {
			to = d
		}
		ok = true
	}
	return from, to, ok
}
