// Package database provides SQL-backed price stores for PostgreSQL and SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

// dialect holds the driver specific statements.
type dialect struct {
	name      string
	migration string
	get       string
	getRange  string
	upsert    string
	count     string
}

// DB wraps a SQL database connection and provides operations for fuel prices.
type DB struct {
	db      *sql.DB
	dialect dialect
	logger  zerolog.Logger
}

func newDB(db *sql.DB, d dialect, logger zerolog.Logger) (*DB, error) {
	if _, err := db.Exec(d.migration); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &DB{
		db:      db,
		dialect: d,
		logger:  logger.With().Str("component", "database").Str("driver", d.name).Logger(),
	}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks if the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Driver returns the name of the SQL dialect in use.
func (d *DB) Driver() string {
	return d.dialect.name
}

// Get returns the price record for a fuel type and day, or nil if none exists.
func (d *DB) Get(ctx context.Context, fuelType models.FuelType, day models.Day) (*models.PriceRecord, error) {
	var ft, date, price string
	var history []byte

	err := d.db.QueryRowContext(ctx, d.dialect.get, string(fuelType), day.String()).
		Scan(&ft, &date, &price, &history)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting price: %w", err)
	}

	r, err := store.ParseRow(ft, date, price, history)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("fuel_type", ft).
			Str("date", date).
			Msg("skipping unreadable price record")
		return nil, nil
	}
	return &r, nil
}

// GetRange returns all price records of a fuel type within [from, to], ordered by date.
// Rows that cannot be parsed are skipped with a warning.
func (d *DB) GetRange(ctx context.Context, fuelType models.FuelType, from, to models.Day) ([]models.PriceRecord, error) {
	rows, err := d.db.QueryContext(ctx, d.dialect.getRange, string(fuelType), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("querying prices: %w", err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		var ft, date, price string
		var history []byte
		if err := rows.Scan(&ft, &date, &price, &history); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		r, err := store.ParseRow(ft, date, price, history)
		if err != nil {
			d.logger.Warn().
				Err(err).
				Str("fuel_type", ft).
				Str("date", date).
				Msg("skipping unreadable price record")
			continue
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return records, nil
}

// Upsert writes all records in a single transaction. Either every record is
// written or none is.
func (d *DB) Upsert(ctx context.Context, records []models.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := store.Validate(records); err != nil {
		return err
	}

	histories := make([]string, len(records))
	for i, r := range records {
		b, err := store.EncodeHistory(r.History)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
		}
		histories[i] = string(b)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, d.dialect.upsert)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, string(r.FuelType), r.Date.String(), r.Price.String(), histories[i]); err != nil {
			return fmt.Errorf("upserting price %s: %w", r.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug().
		Int("count", len(records)).
		Msg("upserted price records")

	return nil
}

// Count returns the total number of price records in the database.
func (d *DB) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx, d.dialect.count).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting prices: %w", err)
	}
	return count, nil
}
