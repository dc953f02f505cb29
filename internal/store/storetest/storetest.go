// Package storetest provides a contract test suite for store.Store implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is the factory's responsibility.
type Factory func(t *testing.T) store.Store

func rec(ft models.FuelType, date, price string, history ...models.PriceChange) models.PriceRecord {
	d, err := models.ParseDay(date)
	if err != nil {
		panic(err)
	}
	if history == nil {
		history = []models.PriceChange{}
	}
	return models.PriceRecord{FuelType: ft, Date: d, Price: decimal.RequireFromString(price), History: history}
}

func change(ts time.Time, price string) models.PriceChange {
	return models.PriceChange{DetectedAt: ts, Price: decimal.RequireFromString(price)}
}

func assertRecordEqual(t *testing.T, want models.PriceRecord, got *models.PriceRecord) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "want %+v, got %+v", want, *got)
}

// Run executes the contract suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Get(context.Background(), models.FuelTypeDiesel, models.NewDay(2024, 1, 1))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("UpsertThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		detected := time.Date(2024, 1, 1, 7, 30, 15, 123456789, time.UTC)
		r := rec(models.FuelTypeDiesel, "2024-01-01", "12.49", change(detected, "11.99"))

		require.NoError(t, s.Upsert(ctx, []models.PriceRecord{r}))

		got, err := s.Get(ctx, models.FuelTypeDiesel, r.Date)
		require.NoError(t, err)
		assertRecordEqual(t, r, got)
		assert.Equal(t, detected.UnixNano(), got.History[0].DetectedAt.UnixNano())
	})

	t.Run("GetRangeInclusiveAndOrdered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, []models.PriceRecord{
			rec(models.FuelTypeDiesel, "2024-01-04", "4"),
			rec(models.FuelTypeDiesel, "2024-01-02", "2"),
			rec(models.FuelTypeDiesel, "2024-01-01", "1"),
			rec(models.FuelTypeDiesel, "2024-01-03", "3"),
			rec(models.FuelTypeOctane100, "2024-01-02", "20"),
		}))

		got, err := s.GetRange(ctx, models.FuelTypeDiesel, models.NewDay(2024, 1, 2), models.NewDay(2024, 1, 4))
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, want := range []string{"2024-01-02", "2024-01-03", "2024-01-04"} {
			assert.Equal(t, want, got[i].Date.String())
			assert.Equal(t, models.FuelTypeDiesel, got[i].FuelType)
		}
	})

	t.Run("GetRangeEmpty", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetRange(context.Background(), models.FuelTypeDiesel, models.NewDay(2024, 1, 1), models.NewDay(2024, 1, 31))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("UpsertIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := rec(models.FuelTypeUnleaded95, "2024-02-29", "13.37",
			change(time.Date(2024, 2, 29, 6, 0, 0, 0, time.UTC), "13.00"))

		for i := 0; i < 3; i++ {
			require.NoError(t, s.Upsert(ctx, []models.PriceRecord{r}))
		}

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := s.Get(ctx, r.FuelType, r.Date)
		require.NoError(t, err)
		assertRecordEqual(t, r, got)
	})

	t.Run("UpsertReplacesExisting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := rec(models.FuelTypeDiesel, "2024-01-01", "10.50")
		require.NoError(t, s.Upsert(ctx, []models.PriceRecord{first}))

		second := rec(models.FuelTypeDiesel, "2024-01-01", "12.00",
			change(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), "10.50"))
		require.NoError(t, s.Upsert(ctx, []models.PriceRecord{second}))

		got, err := s.Get(ctx, models.FuelTypeDiesel, first.Date)
		require.NoError(t, err)
		assertRecordEqual(t, second, got)
	})

	t.Run("InvalidRecordFailsWholeBatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		good := rec(models.FuelTypeDiesel, "2024-01-01", "10")
		bad := rec(models.FuelType("Kerosene"), "2024-01-02", "10")

		err := s.Upsert(ctx, []models.PriceRecord{good, bad})
		require.ErrorIs(t, err, store.ErrInvalidRecord)

		got, err := s.Get(ctx, models.FuelTypeDiesel, good.Date)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DuplicateKeyFailsWholeBatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		err := s.Upsert(ctx, []models.PriceRecord{
			rec(models.FuelTypeDiesel, "2024-01-01", "10"),
			rec(models.FuelTypeDiesel, "2024-01-01", "11"),
		})
		require.ErrorIs(t, err, store.ErrInvalidRecord)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Upsert(context.Background(), nil))
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
