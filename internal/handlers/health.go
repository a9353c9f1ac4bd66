package handlers

import (
	"net/http"
	"runtime"
	"time"

	"printvault/internal/logging"
	"printvault/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Database string `json:"database"`
	Queue    string `json:"queue"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. Database and queue
// connectivity are probed on every call; a failing dependency degrades the
// status but still returns 200 since the process itself is alive.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		Database:     "ok",
		Queue:        "ok",
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if err := h.db.Ping(r.Context()); err != nil {
		logging.Warn("Health check: database ping failed: %v", err)
		response.Database = err.Error()
		response.Status = statusDegraded
	}
	if err := h.archiveLane.Ping(r.Context()); err != nil {
		logging.Warn("Health check: queue ping failed: %v", err)
		response.Queue = err.Error()
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// ReadyCheck returns 200 only when both the database and the job queue are
// reachable, so traffic is held off a node that cannot ingest.
func (h *Handlers) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.db.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSONStatus(w, "not_ready")
		return
	}
	if err := h.archiveLane.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSONStatus(w, "not_ready")
		return
	}

	writeJSONStatus(w, "ready")
}
