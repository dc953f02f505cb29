package http

import (
	"crypto/subtle"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/query"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
	"github.com/andygrunwald/fuel-price-scraper/internal/summary"
)

// pricesResponse is the body of a successful /prices request.
type pricesResponse struct {
	Message string          `json:"message"`
	Prices  *models.DayView `json:"prices"`
}

// errorResponse is returned when no prices can be shown.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// PricesHandler serves the read API.
type PricesHandler struct {
	query  *query.Service
	cache  *PriceCache
	logger zerolog.Logger
}

// DayView handles /prices. It answers with a summary sentence and the
// yesterday/today/tomorrow records around the requested day.
func (h *PricesHandler) DayView(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	fuelType := parseFuelType(firstParam(params, "type", "fueltype"))
	lang := summary.ParseLanguage(firstParam(params, "lang", "language"))
	day := h.parseDay(params.Get("now"), models.Today())

	if body, ok := h.cache.Get(fuelType, day, lang); ok {
		writeRaw(w, http.StatusOK, body)
		return
	}

	view, err := h.query.GetDayView(r.Context(), fuelType, day)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("fuel_type", string(fuelType)).
			Str("date", day.String()).
			Msg("failed to get prices")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: summary.NoData(lang), Error: "internal error"})
		return
	}
	if view == nil {
		writeJSON(w, http.StatusOK, errorResponse{Message: summary.NoData(lang), Error: summary.NoData(lang)})
		return
	}

	body, err := json.Marshal(pricesResponse{
		Message: summary.Text(lang, view, fuelType),
		Prices:  view,
	})
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	h.cache.Set(fuelType, day, lang, body)
	writeRaw(w, http.StatusOK, body)
}

// All handles /prices/all and returns every record in [from, to].
// from defaults to yesterday and to defaults to today.
func (h *PricesHandler) All(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	today := models.Today()
	fuelType := parseFuelType(params.Get("type"))
	from := h.parseDay(params.Get("from"), today.AddDays(-1))
	to := h.parseDay(params.Get("to"), today)

	records, err := h.query.GetRange(r.Context(), fuelType, from, to)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("fuel_type", string(fuelType)).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("failed to get price range")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "get all prices failed", Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *PricesHandler) parseDay(s string, fallback models.Day) models.Day {
	if s == "" {
		return fallback
	}
	day, err := models.ParseDay(s)
	if err != nil {
		h.logger.Debug().Err(err).Str("input", s).Msg("failed to parse date, using default")
		return fallback
	}
	return day
}

// JobHandler triggers a reconciliation run over all configured fuel types.
type JobHandler struct {
	scraper   *scraper.Scraper
	key       string
	fuelTypes []models.FuelType
	logger    zerolog.Logger
}

// ServeHTTP implements the http.Handler interface.
func (h *JobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	given := r.URL.Query().Get("key")
	if h.key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.key)) != 1 {
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("rejected job trigger")
		writeJSON(w, http.StatusUnauthorized, "missing key")
		return
	}

	report := h.scraper.RunAll(r.Context(), h.fuelTypes)
	writeJSON(w, http.StatusOK, report)
}

// parseFuelType falls back to Unleaded95 for unknown input.
func parseFuelType(s string) models.FuelType {
	f, err := models.ParseFuelType(s)
	if err != nil {
		return models.FuelTypeUnleaded95
	}
	return f
}

func firstParam(params url.Values, names ...string) string {
	for _, n := range names {
		if v := params.Get(n); v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
