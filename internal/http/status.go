package http

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/scheduler"
	"github.com/andygrunwald/fuel-price-scraper/internal/scraper"
	"github.com/andygrunwald/fuel-price-scraper/internal/store"
)

// StatusHandler handles the /status endpoint.
type StatusHandler struct {
	scraper   *scraper.Scraper
	scheduler *scheduler.Scheduler
	store     store.Store
	driver    string
	startTime time.Time
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(s *scraper.Scraper, sched *scheduler.Scheduler, st store.Store, driver string) *StatusHandler {
	return &StatusHandler{
		scraper:   s,
		scheduler: sched,
		store:     st,
		driver:    driver,
		startTime: time.Now(),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := models.StatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		FuelTypes:     make(map[string]models.FuelStatus),
	}

	// Get scheduler status
	if h.scheduler != nil {
		response.SchedulerRunning = h.scheduler.IsRunning()
		response.LastRunAt = h.scheduler.LastRunAt()
		nextRun := h.scheduler.NextRunAt()
		if !nextRun.IsZero() {
			response.NextRunAt = &nextRun
		}
	}

	// Get per fuel type run statuses
	if h.scraper != nil {
		response.Source = h.scraper.SourceName()
		for fuelType, snapshot := range h.scraper.Snapshots() {
			response.FuelTypes[string(fuelType)] = models.FuelStatus{
				LastRunAt:          snapshot.LastRunAt,
				LastRunSuccess:     snapshot.LastRunSuccess,
				LastResponseTimeMs: snapshot.LastResponseTime.Milliseconds(),
				LastInserted:       snapshot.LastInserted,
				LastUpdated:        snapshot.LastUpdated,
				LastWarnings:       snapshot.LastWarnings,
				LastError:          snapshot.LastError,
				TotalRuns:          snapshot.TotalRuns,
				TotalErrors:        snapshot.TotalErrors,
			}
		}
	}

	response.Store = h.getStoreStatus(ctx)
	if !response.Store.Connected {
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *StatusHandler) getStoreStatus(ctx context.Context) models.StoreStatus {
	status := models.StoreStatus{
		Driver:    h.driver,
		Connected: false,
	}

	if h.store == nil {
		return status
	}

	// Check store connection
	if err := h.store.Ping(ctx); err != nil {
		return status
	}
	status.Connected = true

	// Get total record count
	count, err := h.store.Count(ctx)
	if err == nil {
		status.TotalRecordsStored = count
	}

	return status
}
