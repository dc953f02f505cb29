package store

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// historyEntry is the persisted layout of a single price change.
type historyEntry struct {
	DetectedAt string `json:"detectedAt"`
	Price      string `json:"price"`
}

// EncodeHistory serializes a change history as a JSON array. Timestamps are
// written in RFC 3339 with nanosecond precision.
func EncodeHistory(history []models.PriceChange) ([]byte, error) {
	entries := make([]historyEntry, len(history))
	for i, h := range history {
		entries[i] = historyEntry{
			DetectedAt: h.DetectedAt.UTC().Format(time.RFC3339Nano),
			Price:      h.Price.String(),
		}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	return b, nil
}

// DecodeHistory parses a history written by EncodeHistory. An empty input
// decodes to an empty history.
func DecodeHistory(b []byte) ([]models.PriceChange, error) {
	history := []models.PriceChange{}
	if len(b) == 0 {
		return history, nil
	}

	var entries []historyEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	for i, e := range entries {
		ts, err := time.Parse(time.RFC3339Nano, e.DetectedAt)
		if err != nil {
			return nil, fmt.Errorf("decoding history entry %d: %w", i, err)
		}
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("decoding history entry %d: %w", i, err)
		}
		history = append(history, models.PriceChange{DetectedAt: ts, Price: price})
	}
	return history, nil
}

// recordDocument is the persisted layout of a whole record for key-value backends.
type recordDocument struct {
	FuelType string          `json:"fuelType"`
	Date     string          `json:"date"`
	Price    string          `json:"price"`
	History  json.RawMessage `json:"prevPrices"`
}

// EncodeRecord serializes a full record.
func EncodeRecord(r models.PriceRecord) ([]byte, error) {
	history, err := EncodeHistory(r.History)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(recordDocument{
		FuelType: string(r.FuelType),
		Date:     r.Date.String(),
		Price:    r.Price.String(),
		History:  history,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return b, nil
}

// DecodeRecord parses a record written by EncodeRecord.
func DecodeRecord(b []byte) (models.PriceRecord, error) {
	var doc recordDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return models.PriceRecord{}, fmt.Errorf("decoding record: %w", err)
	}
	return ParseRow(doc.FuelType, doc.Date, doc.Price, doc.History)
}

// ParseRow builds a record from its persisted column values.
func ParseRow(fuelType, date, price string, history []byte) (models.PriceRecord, error) {
	ft, err := models.ParseFuelType(fuelType)
	if err != nil {
		return models.PriceRecord{}, err
	}
	day, err := models.ParseDay(date)
	if err != nil {
		return models.PriceRecord{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return models.PriceRecord{}, fmt.Errorf("decoding price: %w", err)
	}
	h, err := DecodeHistory(history)
	if err != nil {
		return models.PriceRecord{}, err
	}
	return models.PriceRecord{FuelType: ft, Date: day, Price: p, History: h}, nil
}
