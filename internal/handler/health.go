package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/popeskul/wa-inbox/internal/service"
)

type healthResponse struct {
	*service.HealthStatus
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck reports 503 when a dependency is down. A degraded service still answers 200
// so monitoring can tell the state apart from an outage.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth(r.Context())

	if health.Status == service.HealthUnhealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, healthResponse{
		HealthStatus: health,
		Timestamp:    time.Now().UTC(),
	})
}
