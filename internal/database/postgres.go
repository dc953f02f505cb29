package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

//go:embed migrations/postgres.sql
var postgresMigration string

var postgresDialect = dialect{
	name:      "postgres",
	migration: postgresMigration,
	get: `
		SELECT fuel_type, price_date::text, price::text, prev_prices::text
		FROM fuel_prices
		WHERE fuel_type = $1 AND price_date = $2::date
	`,
	getRange: `
		SELECT fuel_type, price_date::text, price::text, prev_prices::text
		FROM fuel_prices
		WHERE fuel_type = $1 AND price_date >= $2::date AND price_date <= $3::date
		ORDER BY price_date ASC
	`,
	upsert: `
		INSERT INTO fuel_prices (fuel_type, price_date, price, prev_prices)
		VALUES ($1, $2::date, $3::numeric, $4::jsonb)
		ON CONFLICT (fuel_type, price_date)
		DO UPDATE SET
			price = EXCLUDED.price,
			prev_prices = EXCLUDED.prev_prices,
			updated_at = NOW()
	`,
	count: `SELECT COUNT(*) FROM fuel_prices`,
}

// NewPostgres connects to PostgreSQL using pgx and applies the schema.
func NewPostgres(dsn string, logger zerolog.Logger) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d, err := newDB(db, postgresDialect, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}
