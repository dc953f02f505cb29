package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/lock"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/query"
	"github.com/andygrunwald/fuel-price-scraper/internal/reconcile"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
	"github.com/andygrunwald/fuel-price-scraper/internal/store/memory"
)

type stubSource struct {
	samples []models.PriceSample
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(context.Context, models.FuelType) (api.FetchResult, error) {
	return api.FetchResult{Samples: s.samples, FetchedAt: time.Now()}, nil
}

type brokenStore struct {
	store.Store
}

func (brokenStore) GetRange(context.Context, models.FuelType, models.Day, models.Day) ([]models.PriceRecord, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

type testEnv struct {
	handler http.Handler
	store   store.Store
	source  *stubSource
	cache   *PriceCache
}

func setupServer(t *testing.T, st store.Store) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	cache := NewPriceCache(1, time.Minute, logger)
	src := &stubSource{}

	s := scraper.New(st, src, reconcile.New(), lock.NewLocal(), logger,
		scraper.WithMetrics(metrics),
		scraper.WithChangeListener(cache.Invalidate),
	)
	srv := NewServer(
		Config{Addr: ":0", JobKey: "secret", FuelTypes: []models.FuelType{models.FuelTypeDiesel}, StoreDriver: "memory"},
		query.New(st), s, nil, st, cache, metrics, reg, logger,
	)
	return &testEnv{handler: srv.Handler(), store: st, source: src, cache: cache}
}

func (e *testEnv) get(t *testing.T, target string) (*http.Response, []byte) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func seed(t *testing.T, st store.Store, fuelType models.FuelType, date, price string) {
	t.Helper()
	day, err := models.ParseDay(date)
	require.NoError(t, err)
	require.NoError(t, st.Upsert(context.Background(), []models.PriceRecord{{
		FuelType: fuelType,
		Date:     day,
		Price:    decimal.RequireFromString(price),
		History:  []models.PriceChange{},
	}}))
}

func TestPrices_DayView(t *testing.T) {
	env := setupServer(t, memory.New())
	seed(t, env.store, models.FuelTypeDiesel, "2024-05-16", "13.29")
	seed(t, env.store, models.FuelTypeDiesel, "2024-05-17", "13.09")

	resp, body := env.get(t, "/prices?fueltype=diesel&now=2024-05-17")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got struct {
		Message string         `json:"message"`
		Prices  models.DayView `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Today, the price of Diesel is 13.09 kroner. Yesterday the price was higher: 13.29 kroner.", got.Message)
	require.NotNil(t, got.Prices.Today)
	assert.Equal(t, "2024-05-17", got.Prices.Today.Date.String())
	assert.Nil(t, got.Prices.Tomorrow)
	assert.Contains(t, string(body), `"prevPrices":[]`)
}

func TestPrices_Danish(t *testing.T) {
	env := setupServer(t, memory.New())
	seed(t, env.store, models.FuelTypeOctane100, "2024-05-17", "15.19")

	_, body := env.get(t, "/prices?type=Octane100&now=2024-05-17&language=da")
	assert.Contains(t, string(body), "Oktan 100 koster 15 kroner og 19 ører i dag.")
}

func TestPrices_DefaultsToUnleaded95(t *testing.T) {
	env := setupServer(t, memory.New())
	seed(t, env.store, models.FuelTypeUnleaded95, "2024-05-17", "14.09")

	_, body := env.get(t, "/prices?type=kerosene&now=2024-05-17")
	assert.Contains(t, string(body), "Unleaed octane 95")
}

func TestPrices_NotFound(t *testing.T) {
	env := setupServer(t, memory.New())

	resp, body := env.get(t, "/prices?type=diesel&now=2024-05-17&lang=da")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Der blev ikke fundet priser for den dato","error":"Der blev ikke fundet priser for den dato"}`, string(body))
}

func TestPrices_StoreFailure(t *testing.T) {
	env := setupServer(t, brokenStore{Store: memory.New()})

	resp, body := env.get(t, "/prices?type=diesel&now=2024-05-17")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"No prices were found for that date","error":"internal error"}`, string(body))

	resp, _ = env.get(t, "/prices/all?type=diesel")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPrices_CacheInvalidatedOnWrite(t *testing.T) {
	env := setupServer(t, memory.New())
	today := models.Today()
	seed(t, env.store, models.FuelTypeDiesel, today.String(), "13.09")

	_, first := env.get(t, "/prices?type=diesel")
	assert.Contains(t, string(first), "13.09")
	assert.Equal(t, int64(1), env.cache.EntryCount())

	// A write outside the reconciler is not seen while cached.
	seed(t, env.store, models.FuelTypeDiesel, today.String(), "13.19")
	_, cached := env.get(t, "/prices?type=diesel")
	assert.Equal(t, first, cached)

	// A run that writes tomorrow's price drops today's cached view.
	env.source.samples = []models.PriceSample{{Date: today.AddDays(1).String(), Price: "13.49"}}
	resp, _ := env.get(t, "/job?key=secret")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(0), env.cache.EntryCount())

	_, fresh := env.get(t, "/prices?type=diesel")
	assert.Contains(t, string(fresh), "13.19")
	assert.Contains(t, string(fresh), "Tomorrow the price will be higher: 13.49 kroner.")
}

func TestPricesAll(t *testing.T) {
	env := setupServer(t, memory.New())
	seed(t, env.store, models.FuelTypeDiesel, "2024-05-15", "13.00")
	seed(t, env.store, models.FuelTypeDiesel, "2024-05-16", "13.10")
	seed(t, env.store, models.FuelTypeDiesel, "2024-05-17", "13.20")

	_, body := env.get(t, "/prices/all?type=diesel&from=2024-05-16&to=2024-05-17")
	var got []models.PriceRecord
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-16", got[0].Date.String())
	assert.Equal(t, "2024-05-17", got[1].Date.String())

	_, body = env.get(t, "/prices/all?type=diesel&from=2020-01-01&to=2020-01-02")
	assert.Equal(t, "[]", string(body))
}

func TestJob(t *testing.T) {
	env := setupServer(t, memory.New())
	env.source.samples = []models.PriceSample{{Date: "2024-05-17T00:00:00", Price: "13.09"}}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing key", "/job", http.StatusUnauthorized},
		{"wrong key", "/job?key=nope", http.StatusUnauthorized},
		{"valid key", "/job?key=secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.get(t, tt.target)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	got, err := env.store.Get(context.Background(), models.FuelTypeDiesel, models.NewDay(2024, 5, 17))
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestJob_ReportBody(t *testing.T) {
	env := setupServer(t, memory.New())
	env.source.samples = []models.PriceSample{{Date: "2024-05-17", Price: "13.09"}, {Date: "bad", Price: "1"}}

	_, body := env.get(t, "/job?key=secret")
	var report scraper.RunReport
	require.NoError(t, json.Unmarshal(body, &report))
	require.Len(t, report.Fuels, 1)
	assert.Equal(t, models.FuelTypeDiesel, report.Fuels[0].FuelType)
	assert.Equal(t, 1, report.Fuels[0].Inserted)
	assert.Len(t, report.Fuels[0].Warnings, 1)
	assert.NotEmpty(t, report.RunID)
}

func TestJob_NoKeyConfigured(t *testing.T) {
	h := &JobHandler{key: "", logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job?key=", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := setupServer(t, memory.New())
	req := httptest.NewRequest(http.MethodOptions, "/prices", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "X-Custom")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Custom", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestStatusAndHealth(t *testing.T) {
	env := setupServer(t, memory.New())
	seed(t, env.store, models.FuelTypeDiesel, "2024-05-17", "13.09")
	env.get(t, "/job?key=secret")

	resp, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	_, body = env.get(t, "/status")
	var status models.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "stub", status.Source)
	assert.Equal(t, "memory", status.Store.Driver)
	assert.True(t, status.Store.Connected)
	assert.Equal(t, int64(1), status.Store.TotalRecordsStored)
	assert.Equal(t, int64(1), status.FuelTypes["Diesel"].TotalRuns)
}

func TestStatus_Degraded(t *testing.T) {
	env := setupServer(t, brokenStore{Store: memory.New()})
	_, body := env.get(t, "/status")
	assert.Contains(t, string(body), `"status":"degraded"`)
	assert.Contains(t, string(body), `"connected":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupServer(t, memory.New())
	env.source.samples = []models.PriceSample{{Date: "2024-05-17", Price: "13.09"}}
	env.get(t, "/job?key=secret")
	env.get(t, "/prices?type=diesel&now=2024-05-17")

	_, body := env.get(t, "/metrics")
	text := string(body)
	for _, name := range []string{
		"fuelscraper_source_requests_total",
		"fuelscraper_runs_total",
		"fuelscraper_records_written_total",
		"fuelscraper_store_operations_total",
		"fuelscraper_http_requests_total",
	} {
		assert.True(t, strings.Contains(text, name), "missing metric %s", name)
	}
}
