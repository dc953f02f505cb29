package http

import (
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/summary"
)

var cachedLanguages = []summary.Language{summary.English, summary.Danish}

// PriceCache keeps rendered /prices responses. Entries are dropped when a run
// writes a record that could appear in them.
type PriceCache struct {
	cache  *freecache.Cache
	ttl    int
	logger zerolog.Logger
}

// NewPriceCache creates a cache of sizeMB megabytes. A non-positive size
// disables caching and returns nil.
func NewPriceCache(sizeMB int, ttl time.Duration, logger zerolog.Logger) *PriceCache {
	logger = logger.With().Str("component", "cache").Logger()
	if sizeMB <= 0 {
		logger.Info().Msg("response cache disabled")
		return nil
	}

	logger.Info().Int("size_mb", sizeMB).Dur("ttl", ttl).Msg("response cache initialized")
	return &PriceCache{
		// freecache enforces a minimum of 512KB.
		cache:  freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:    max(int(ttl.Seconds()), 1),
		logger: logger,
	}
}

func cacheKey(fuelType models.FuelType, day models.Day, lang summary.Language) []byte {
	return []byte(fmt.Sprintf("prices|%s|%s|%s", fuelType, day, lang))
}

// Get returns a cached response body.
func (c *PriceCache) Get(fuelType models.FuelType, day models.Day, lang summary.Language) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.cache.Get(cacheKey(fuelType, day, lang))
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a response body.
func (c *PriceCache) Set(fuelType models.FuelType, day models.Day, lang summary.Language, body []byte) {
	if c == nil {
		return
	}
	if err := c.cache.Set(cacheKey(fuelType, day, lang), body, c.ttl); err != nil {
		c.logger.Debug().Err(err).Msg("response not cached")
	}
}

// Invalidate drops every response whose day view includes one of records.
// Its signature matches scraper.ChangeListener.
func (c *PriceCache) Invalidate(fuelType models.FuelType, records []models.PriceRecord) {
	if c == nil {
		return
	}
	dropped := 0
	for _, r := range records {
		for offset := -1; offset <= 1; offset++ {
			for _, lang := range cachedLanguages {
				if c.cache.Del(cacheKey(fuelType, r.Date.AddDays(offset), lang)) {
					dropped++
				}
			}
		}
	}
	if dropped > 0 {
		c.logger.Debug().Str("fuel_type", string(fuelType)).Int("dropped", dropped).Msg("invalidated cached responses")
	}
}

// EntryCount returns the number of cached responses.
func (c *PriceCache) EntryCount() int64 {
	if c == nil {
		return 0
	}
	return c.cache.EntryCount()
}
