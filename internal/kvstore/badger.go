// Package kvstore provides a Badger backed price store. Records are stored
// under "price/<fuel type>/<YYYY-MM-DD>" so a prefix scan yields them in date
// order.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

const keyPrefix = "price/"

// Store is a price store on top of a Badger database.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// New opens a Badger database in dir. An empty dir opens an in-memory database.
func New(dir string, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "kvstore").Logger()

	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger: logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func fuelPrefix(fuelType models.FuelType) string {
	return keyPrefix + string(fuelType) + "/"
}

func recordKey(fuelType models.FuelType, day models.Day) []byte {
	return []byte(fuelPrefix(fuelType) + day.String())
}

// Get returns the record for a fuel type and day, or nil if none exists.
func (s *Store) Get(_ context.Context, fuelType models.FuelType, day models.Day) (*models.PriceRecord, error) {
	var rec *models.PriceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(fuelType, day))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, err := store.DecodeRecord(val)
			if err != nil {
				s.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping unreadable price record")
				return nil
			}
			rec = &r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("getting price: %w", err)
	}
	return rec, nil
}

// GetRange returns all records of a fuel type within [from, to], ordered by date.
func (s *Store) GetRange(_ context.Context, fuelType models.FuelType, from, to models.Day) ([]models.PriceRecord, error) {
	var records []models.PriceRecord
	prefix := []byte(fuelPrefix(fuelType))
	end := string(recordKey(fuelType, to))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(recordKey(fuelType, from)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if string(item.Key()) > end {
				break
			}
			err := item.Value(func(val []byte) error {
				r, err := store.DecodeRecord(val)
				if err != nil {
					s.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping unreadable price record")
					return nil
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("querying prices: %w", err)
	}
	return records, nil
}

// Upsert writes the whole batch in one transaction.
func (s *Store) Upsert(_ context.Context, records []models.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := store.Validate(records); err != nil {
		return err
	}

	values := make([][]byte, len(records))
	for i, r := range records {
		b, err := store.EncodeRecord(r)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
		}
		values[i] = b
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for i, r := range records {
			if err := txn.Set(recordKey(r.FuelType, r.Date), values[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upserting prices: %w", err)
	}

	s.logger.Debug().Int("count", len(records)).Msg("upserted price records")
	return nil
}

// Count returns the number of stored price records.
func (s *Store) Count(_ context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting prices: %w", err)
	}
	return n, nil
}

// Ping reports an error once the database is closed.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging through zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(f), v...)
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(f), v...)
}

func (l badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(f), v...)
}

func (l badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Trace().Msgf(strings.TrimSpace(f), v...)
}
