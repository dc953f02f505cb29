// Package config provides configuration structures and loading for the fuel price scraper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andygrunwald/fuel-price-scraper/internal/api/ok"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	DriverMemory   = "memory"
)

// ConfigFileEnv names the environment variable pointing to a config file.
const ConfigFileEnv = "FUELSCRAPER_CONFIG"

// Config holds all configuration for the fuel price scraper.
type Config struct {
	// Store backend (postgres, sqlite, badger, memory)
	StoreDriver string `mapstructure:"store_driver" validate:"required|in:postgres,sqlite,badger,memory"`
	// PostgreSQL connection string
	PostgresDSN string `mapstructure:"postgres_dsn"`
	// SQLite database file
	SQLitePath string `mapstructure:"sqlite_path"`
	// Badger data directory
	BadgerDir string `mapstructure:"badger_dir"`
	// Log level (debug, info, warn, error)
	LogLevel string `mapstructure:"log_level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	// Log format (json, console)
	LogFormat string `mapstructure:"log_format" validate:"required|in:json,console"`
	// HTTP server address
	HTTPAddr string `mapstructure:"http_addr" validate:"required"`
	// Upstream price history endpoint
	SourceURL string `mapstructure:"source_url" validate:"required|fullUrl"`
	// Timeout of a single upstream fetch
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"required|min:1"`
	// Time between scheduled runs
	ScrapeInterval time.Duration `mapstructure:"scrape_interval" validate:"required|min:1"`
	// Fuel types to reconcile
	FuelTypes []string `mapstructure:"fuel_types" validate:"required"`
	// Shared secret for the /job endpoint; empty disables it
	JobKey string `mapstructure:"job_key"`
	// Response cache size in MB; 0 disables caching
	CacheSizeMB int `mapstructure:"cache_size_mb" validate:"min:0"`
	// Lifetime of cached responses
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min:0"`
	// Directory for raw response archives; empty disables archiving
	ArchiveDir string `mapstructure:"archive_dir"`
	// Redis address for run locks shared between instances; empty uses in-process locks
	RedisAddr string `mapstructure:"redis_addr"`
	// Redis password
	RedisPassword string `mapstructure:"redis_password"`
	// Redis database
	RedisDB int `mapstructure:"redis_db" validate:"min:0"`
	// Expiry of a Redis run lock. Runs are cancelled at 90% of it, so it has to
	// exceed FetchTimeout plus the time a store write takes.
	LockTTL time.Duration `mapstructure:"lock_ttl" validate:"min:0"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	fuelTypes := make([]string, 0, 3)
	for _, f := range models.AllFuelTypes() {
		fuelTypes = append(fuelTypes, string(f))
	}
	return &Config{
		StoreDriver:    DriverPostgres,
		PostgresDSN:    "",
		SQLitePath:     "fuelprices.db",
		BadgerDir:      "fuelprices-badger",
		LogLevel:       "info",
		LogFormat:      "json",
		HTTPAddr:       ":8080",
		SourceURL:      ok.DefaultURL,
		FetchTimeout:   30 * time.Second,
		ScrapeInterval: time.Hour,
		FuelTypes:      fuelTypes,
		CacheSizeMB:    16,
		CacheTTL:       5 * time.Minute,
		LockTTL:        5 * time.Minute,
	}
}

// envBindings maps config keys to environment variables.
var envBindings = map[string]string{
	"store_driver":    "STORE_DRIVER",
	"postgres_dsn":    "POSTGRES_DSN",
	"sqlite_path":     "SQLITE_PATH",
	"badger_dir":      "BADGER_DIR",
	"log_level":       "LOG_LEVEL",
	"log_format":      "LOG_FORMAT",
	"http_addr":       "HTTP_ADDR",
	"source_url":      "SOURCE_URL",
	"fetch_timeout":   "FETCH_TIMEOUT",
	"scrape_interval": "SCRAPE_INTERVAL",
	"fuel_types":      "FUEL_TYPES",
	"job_key":         "JOB_KEY",
	"cache_size_mb":   "CACHE_SIZE_MB",
	"cache_ttl":       "CACHE_TTL",
	"archive_dir":     "ARCHIVE_DIR",
	"redis_addr":      "REDIS_ADDR",
	"redis_password":  "REDIS_PASSWORD",
	"redis_db":        "REDIS_DB",
	"lock_ttl":        "LOCK_TTL",
}

// Load builds the configuration from defaults, a .env file, an optional YAML
// file and environment variables, in increasing precedence. An empty path
// looks for fuelscraper.yaml in the working directory and ignores its absence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("fuelscraper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	cfg.FuelTypes = splitList(cfg.FuelTypes)

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("store_driver", cfg.StoreDriver)
	v.SetDefault("postgres_dsn", cfg.PostgresDSN)
	v.SetDefault("sqlite_path", cfg.SQLitePath)
	v.SetDefault("badger_dir", cfg.BadgerDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("source_url", cfg.SourceURL)
	v.SetDefault("fetch_timeout", cfg.FetchTimeout)
	v.SetDefault("scrape_interval", cfg.ScrapeInterval)
	v.SetDefault("fuel_types", cfg.FuelTypes)
	v.SetDefault("job_key", cfg.JobKey)
	v.SetDefault("cache_size_mb", cfg.CacheSizeMB)
	v.SetDefault("cache_ttl", cfg.CacheTTL)
	v.SetDefault("archive_dir", cfg.ArchiveDir)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_password", cfg.RedisPassword)
	v.SetDefault("redis_db", cfg.RedisDB)
	v.SetDefault("lock_ttl", cfg.LockTTL)
}

// splitList flattens comma separated entries and trims whitespace.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %w", v.Errors)
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("invalid configuration: --postgres-dsn is required for the postgres store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("invalid configuration: --sqlite-path is required for the sqlite store")
		}
	}

	if c.RedisAddr != "" && c.LockTTL-c.LockTTL/10 <= c.FetchTimeout {
		return fmt.Errorf("invalid configuration: --lock-ttl (%s) must leave room for --fetch-timeout (%s)", c.LockTTL, c.FetchTimeout)
	}

	if _, err := c.ParsedFuelTypes(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ParsedFuelTypes returns the configured fuel types.
func (c *Config) ParsedFuelTypes() ([]models.FuelType, error) {
	names := splitList(c.FuelTypes)
	if len(names) == 0 {
		return nil, errors.New("no fuel types configured")
	}
	seen := make(map[models.FuelType]bool, len(names))
	out := make([]models.FuelType, 0, len(names))
	for _, name := range names {
		f, err := models.ParseFuelType(name)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}
