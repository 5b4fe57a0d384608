package api

import (
	"net/http"
	"time"

	"github.com/snarg/clipforge/internal/database"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	ActiveJobs    int               `json:"active_jobs"`
}

// PipelineStatus reports how many job pipelines are currently running.
type PipelineStatus interface {
	ActiveJobs() int
}

type HealthHandler struct {
	db        *database.DB
	pipe      PipelineStatus
	version   string
	startTime time.Time
}

func NewHealthHandler(db *database.DB, pipe PipelineStatus, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		pipe:      pipe,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	active := 0
	if h.pipe != nil {
		active = h.pipe.ActiveJobs()
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		ActiveJobs:    active,
	})
}
