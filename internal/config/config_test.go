package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

func validConfig() *Config {
	c := DefaultConfig()
	c.PostgresDSN = "postgres://localhost/fuel"
	return c
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigFileEnv, "")
	for _, env := range envBindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, DriverPostgres, c.StoreDriver)
	assert.Equal(t, time.Hour, c.ScrapeInterval)
	assert.Equal(t, 30*time.Second, c.FetchTimeout)
	assert.Equal(t, []string{"Diesel", "Octane100", "Unleaded95"}, c.FuelTypes)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.PostgresDSN = "" }},
		{"sqlite without path", func(c *Config) { c.StoreDriver = DriverSQLite; c.SQLitePath = "" }},
		{"invalid log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"invalid log format", func(c *Config) { c.LogFormat = "xml" }},
		{"empty http addr", func(c *Config) { c.HTTPAddr = "" }},
		{"invalid source url", func(c *Config) { c.SourceURL = "not a url" }},
		{"zero fetch timeout", func(c *Config) { c.FetchTimeout = 0 }},
		{"zero interval", func(c *Config) { c.ScrapeInterval = 0 }},
		{"no fuel types", func(c *Config) { c.FuelTypes = nil }},
		{"unknown fuel type", func(c *Config) { c.FuelTypes = []string{"Diesel", "Kerosene"} }},
		{"redis lock ttl below fetch timeout", func(c *Config) {
			c.RedisAddr = "localhost:6379"
			c.LockTTL = 30 * time.Second
			c.FetchTimeout = 30 * time.Second
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidate_NonPostgresDriversNeedNoDSN(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverBadger, DriverMemory} {
		c := DefaultConfig()
		c.StoreDriver = driver
		assert.NoError(t, c.Validate(), driver)
	}
}

func TestValidate_LockTTLOnlyMattersWithRedis(t *testing.T) {
	c := validConfig()
	c.LockTTL = time.Second
	assert.NoError(t, c.Validate())

	c.RedisAddr = "localhost:6379"
	assert.Error(t, c.Validate())

	c.LockTTL = 5 * time.Minute
	assert.NoError(t, c.Validate())
}

func TestParsedFuelTypes(t *testing.T) {
	c := DefaultConfig()
	c.FuelTypes = []string{"diesel, octane100", "Diesel"}
	got, err := c.ParsedFuelTypes()
	require.NoError(t, err)
	assert.Equal(t, []models.FuelType{models.FuelTypeDiesel, models.FuelTypeOctane100}, got)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SCRAPE_INTERVAL", "15m")
	t.Setenv("FUEL_TYPES", "Diesel,Octane100")
	t.Setenv("CACHE_SIZE_MB", "4")
	t.Setenv("JOB_KEY", "secret")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, c.StoreDriver)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 15*time.Minute, c.ScrapeInterval)
	assert.Equal(t, []string{"Diesel", "Octane100"}, c.FuelTypes)
	assert.Equal(t, 4, c.CacheSizeMB)
	assert.Equal(t, "secret", c.JobKey)
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "fuelscraper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_driver: badger
badger_dir: /var/lib/fuel
log_level: warn
fetch_timeout: 45s
fuel_types:
  - Unleaded95
`), 0o644))
	t.Setenv("LOG_LEVEL", "error")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverBadger, c.StoreDriver)
	assert.Equal(t, "/var/lib/fuel", c.BadgerDir)
	assert.Equal(t, "error", c.LogLevel, "environment wins over the file")
	assert.Equal(t, 45*time.Second, c.FetchTimeout)
	assert.Equal(t, []string{"Unleaded95"}, c.FuelTypes)
	assert.Equal(t, ":8080", c.HTTPAddr, "unset keys keep their default")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
