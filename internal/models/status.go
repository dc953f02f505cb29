package models

import "time"

// FuelStatus holds the operational status of reconciliation for one fuel type.
type FuelStatus struct {
	LastRunAt          *time.Time `json:"last_run_at"`
	LastRunSuccess     bool       `json:"last_run_success"`
	LastResponseTimeMs int64      `json:"last_response_time_ms"`
	LastInserted       int        `json:"last_inserted"`
	LastUpdated        int        `json:"last_updated"`
	LastWarnings       int        `json:"last_warnings"`
	LastError          *string    `json:"last_error"`
	TotalRuns          int64      `json:"total_runs"`
	TotalErrors        int64      `json:"total_errors"`
}

// StatusResponse is the response for the /status endpoint.
type StatusResponse struct {
	Status           string                `json:"status"`
	UptimeSeconds    int64                 `json:"uptime_seconds"`
	SchedulerRunning bool                  `json:"scheduler_running"`
	NextRunAt        *time.Time            `json:"next_run_at,omitempty"`
	LastRunAt        *time.Time            `json:"last_run_at,omitempty"`
	Source           string                `json:"source"`
	FuelTypes        map[string]FuelStatus `json:"fuel_types"`
	Store            StoreStatus           `json:"store"`
}

// StoreStatus holds the price store status.
type StoreStatus struct {
	Driver             string `json:"driver"`
	Connected          bool   `json:"connected"`
	TotalRecordsStored int64  `json:"total_records_stored"`
}
