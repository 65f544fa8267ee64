package handler

import (
	"net/http"
	"time"

	"mrilo/internal/httputil"
	"mrilo/internal/service/llm/providers"
)

// HealthHandler reports liveness and provider states
type HealthHandler struct {
	registry *providers.Registry
	started  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *providers.Registry) *HealthHandler {
	return &HealthHandler{registry: registry, started: time.Now()}
}

// HealthCheck answers 200 while the process is serving
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"providers": h.registry.Status(),
	})
}
