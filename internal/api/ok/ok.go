// Package ok provides an API client for the OK price history service.
package ok

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/useragent"
)

const (
	// SourceName is the identifier for this source.
	SourceName = "ok"
	// DefaultURL is the price history endpoint of OK.
	DefaultURL = "https://www.ok.dk/privat/produkter/ok-kort/prisudvikling/getProduktHistorik"
)

// itemNumbers maps fuel types to OK's product numbers.
var itemNumbers = map[models.FuelType]int{
	models.FuelTypeOctane100:  533,
	models.FuelTypeDiesel:     231,
	models.FuelTypeUnleaded95: 536,
}

// ItemNumber returns OK's product number for a fuel type.
func ItemNumber(fuelType models.FuelType) (int, bool) {
	n, ok := itemNumbers[fuelType]
	return n, ok
}

type apiRequest struct {
	ItemNumber int    `json:"varenr"`
	PumpPrice  string `json:"pumpepris"`
}

// apiResponse represents the JSON response of the price history endpoint.
type apiResponse struct {
	PricesPer1000Liter bool              `json:"visPriserFor1000Liter"`
	History            []json.RawMessage `json:"historik"`
}

// historyItem is a single entry of the price history. Both fields are kept
// raw so an odd item ends up as an unparseable sample instead of failing the
// whole response.
type historyItem struct {
	Date  json.RawMessage `json:"dato"`
	Price json.RawMessage `json:"pris"`
}

// Source implements api.Source for OK.
type Source struct {
	client *http.Client
	logger zerolog.Logger
	url    string
}

// New creates a new OK source. An empty url uses DefaultURL.
func New(logger zerolog.Logger, url string, timeout time.Duration) *Source {
	if url == "" {
		url = DefaultURL
	}
	return &Source{
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("source", SourceName).Logger(),
		url:    url,
	}
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return SourceName
}

// Fetch fetches the published price history for one fuel type.
func (s *Source) Fetch(ctx context.Context, fuelType models.FuelType) (api.FetchResult, error) {
	fail := func(status int, err error) (api.FetchResult, error) {
		return api.FetchResult{}, &api.FetchError{Source: SourceName, FuelType: fuelType, StatusCode: status, Err: err}
	}

	item, ok := ItemNumber(fuelType)
	if !ok {
		return fail(0, fmt.Errorf("%w: %q", models.ErrUnknownFuelType, fuelType))
	}

	payload, err := json.Marshal(apiRequest{ItemNumber: item, PumpPrice: "true"})
	if err != nil {
		return fail(0, fmt.Errorf("encoding request: %w", err))
	}

	s.logger.Debug().
		Str("url", s.url).
		Str("fuel_type", string(fuelType)).
		Int("item", item).
		Msg("fetching prices from OK")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fail(0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", useragent.Random())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected status code: %s", truncate(body, 512)))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("parsing response JSON: %w", err))
	}

	samples := make([]models.PriceSample, 0, len(apiResp.History))
	for _, raw := range apiResp.History {
		samples = append(samples, toSample(raw))
	}

	s.logger.Info().
		Str("fuel_type", string(fuelType)).
		Int("samples", len(samples)).
		Bool("per_1000_liter", apiResp.PricesPer1000Liter).
		Msg("fetched prices from OK")

	return api.FetchResult{
		Samples:     samples,
		RawResponse: body,
		FetchedAt:   time.Now(),
	}, nil
}

func toSample(raw json.RawMessage) models.PriceSample {
	var item historyItem
	if err := json.Unmarshal(raw, &item); err != nil {
		// The reconciler rejects this sample with the raw item as context.
		return models.PriceSample{Date: strings.TrimSpace(string(raw))}
	}
	return models.PriceSample{
		Date:  rawText(item.Date),
		Price: rawText(item.Price),
	}
}

// rawText returns the text of a JSON scalar. Strings are unquoted, numbers
// keep their literal form and null becomes empty.
func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
