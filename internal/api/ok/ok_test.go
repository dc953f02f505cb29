package ok

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

func TestFetch(t *testing.T) {
	var gotReq apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotReq))

		_, _ = w.Write([]byte(`{
			"visPriserFor1000Liter": false,
			"historik": [
				{"dato": "2024-05-16T00:00:00", "pris": 13.09},
				{"dato": "2024-05-17T00:00:00", "pris": "13.29"},
				{"dato": null, "pris": 12},
				"garbage"
			]
		}`))
	}))
	defer srv.Close()

	src := New(zerolog.Nop(), srv.URL, 5*time.Second)
	res, err := src.Fetch(context.Background(), models.FuelTypeDiesel)
	require.NoError(t, err)

	assert.Equal(t, 231, gotReq.ItemNumber)
	assert.Equal(t, "true", gotReq.PumpPrice)
	assert.Equal(t, []models.PriceSample{
		{Date: "2024-05-16T00:00:00", Price: "13.09"},
		{Date: "2024-05-17T00:00:00", Price: "13.29"},
		{Date: "", Price: "12"},
		{Date: `"garbage"`},
	}, res.Samples)
	assert.NotEmpty(t, res.RawResponse)
	assert.False(t, res.FetchedAt.IsZero())
	assert.Equal(t, SourceName, src.Name())
}

func TestFetch_ItemNumbers(t *testing.T) {
	tests := map[models.FuelType]int{
		models.FuelTypeOctane100:  533,
		models.FuelTypeDiesel:     231,
		models.FuelTypeUnleaded95: 536,
	}
	for fuelType, want := range tests {
		t.Run(string(fuelType), func(t *testing.T) {
			got, ok := ItemNumber(fuelType)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusBadGateway, "upstream down", http.StatusBadGateway},
		{"malformed body", http.StatusOK, "<html>", http.StatusOK},
		{"wrong shape", http.StatusOK, `{"historik": {"dato": "x"}}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(zerolog.Nop(), srv.URL, 5*time.Second).Fetch(context.Background(), models.FuelTypeOctane100)
			var fe *api.FetchError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.wantStatus, fe.StatusCode)
			assert.Equal(t, models.FuelTypeOctane100, fe.FuelType)
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(zerolog.Nop(), srv.URL, 5*time.Second).Fetch(ctx, models.FuelTypeDiesel)
	var fe *api.FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetch_UnknownFuelType(t *testing.T) {
	_, err := New(zerolog.Nop(), "http://127.0.0.1:0", time.Second).Fetch(context.Background(), "Kerosene")
	assert.ErrorIs(t, err, models.ErrUnknownFuelType)
}

func TestNew_DefaultURL(t *testing.T) {
	assert.Equal(t, DefaultURL, New(zerolog.Nop(), "", time.Second).url)
}
