package handler

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db      pinger
	mode    string
	started time.Time
}

// NewHealthHandler reports on db; mode names the storage backend ("postgres"
// or "memory").
func NewHealthHandler(db pinger, mode string) *HealthHandler {
	return &HealthHandler{db: db, mode: mode, started: time.Now()}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":         "ok",
		"storage":        h.mode,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}

	writeSuccess(w, status, body, nil)
}

func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeSuccessMessage(w, http.StatusOK, "Invoice API is running", map[string]string{"api": "/api"}, nil)
}
