package database

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Register sqlite driver
)

//go:embed migrations/sqlite.sql
var sqliteMigration string

var sqliteDialect = dialect{
	name:      "sqlite",
	migration: sqliteMigration,
	get: `
		SELECT fuel_type, price_date, price, prev_prices
		FROM fuel_prices
		WHERE fuel_type = ? AND price_date = ?
	`,
	getRange: `
		SELECT fuel_type, price_date, price, prev_prices
		FROM fuel_prices
		WHERE fuel_type = ? AND price_date >= ? AND price_date <= ?
		ORDER BY price_date ASC
	`,
	upsert: `
		INSERT INTO fuel_prices (fuel_type, price_date, price, prev_prices)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (fuel_type, price_date)
		DO UPDATE SET
			price = excluded.price,
			prev_prices = excluded.prev_prices,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`,
	count: `SELECT COUNT(*) FROM fuel_prices`,
}

// NewSQLite opens (or creates) a SQLite database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func NewSQLite(path string, logger zerolog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In-memory databases are per-connection. Limit to one connection so
	// migrations and queries all see the same data.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	d, err := newDB(db, sqliteDialect, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}
