// Package memory provides an in-process price store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

// Store keeps price records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[models.RecordKey]models.PriceRecord
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[models.RecordKey]models.PriceRecord)}
}

// Get returns the record for the given key, or nil if none exists.
func (s *Store) Get(_ context.Context, fuelType models.FuelType, day models.Day) (*models.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[models.RecordKey{FuelType: fuelType, Date: day}]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

// GetRange returns all records in [from, to] ordered by date.
func (s *Store) GetRange(_ context.Context, fuelType models.FuelType, from, to models.Day) ([]models.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PriceRecord
	for k, r := range s.records {
		if k.FuelType == fuelType && k.Date >= from && k.Date <= to {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Upsert validates the batch and writes all records under a single lock.
func (s *Store) Upsert(_ context.Context, records []models.PriceRecord) error {
	if err := store.Validate(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.Key()] = r.Clone()
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
