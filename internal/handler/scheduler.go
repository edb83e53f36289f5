package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/middleware"
	"github.com/popeskul/wa-inbox/internal/scheduler"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

const (
	schedulerStatusStarted = "started"
	schedulerStatusStopped = "stopped"
)

type schedulerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StartScheduler resumes the connection status checks. Admins only.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.Scheduler.Start(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
			middleware.WriteError(w, r, http.StatusConflict, errorCodeSchedulerAlreadyRunning, errorMessageSchedulerRunning)
			return
		}
		h.sendServiceError(w, r, err, "start scheduler")
		return
	}

	h.logger.Info("Scheduler started via API",
		zap.String("request_id", middleware.GetRequestID(r.Context())))
	render.JSON(w, r, schedulerResponse{Status: schedulerStatusStarted, Message: "Scheduler started successfully"})
}

// StopScheduler pauses the connection status checks. Admins only.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.Scheduler.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			middleware.WriteError(w, r, http.StatusConflict, errorCodeSchedulerNotRunning, errorMessageSchedulerNotRunning)
			return
		}
		h.sendServiceError(w, r, err, "stop scheduler")
		return
	}

	h.logger.Info("Scheduler stopped via API",
		zap.String("request_id", middleware.GetRequestID(r.Context())))
	render.JSON(w, r, schedulerResponse{Status: schedulerStatusStopped, Message: "Scheduler stopped successfully"})
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	id, ok := tenant.IdentityFrom(r.Context())
	if !ok || id.Role != tenant.RoleAdmin {
		middleware.WriteError(w, r, http.StatusForbidden, middleware.ErrorCodeForbidden, errorMessageForbidden)
		return false
	}
	return true
}
