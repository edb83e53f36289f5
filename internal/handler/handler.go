// Package handler provides the HTTP handlers of the inbox API.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/middleware"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/service"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

const (
	errorCodeSchedulerAlreadyRunning = "SCHEDULER_ALREADY_RUNNING"
	errorCodeSchedulerNotRunning     = "SCHEDULER_NOT_RUNNING"
	errorCodeGatewayUnavailable      = "GATEWAY_UNAVAILABLE"
)

const (
	errorMessageInvalidBody         = "Invalid request body"
	errorMessageInvalidID           = "Invalid ticket id"
	errorMessageForbidden           = "Not allowed for the caller"
	errorMessageNotFound            = "Resource not found"
	errorMessageConflict            = "Ticket status does not allow this action"
	errorMessageGateway             = "WhatsApp gateway rejected the request"
	errorMessageGatewayUnavailable  = "WhatsApp gateway is unavailable"
	errorMessageSchedulerRunning    = "Scheduler is already running"
	errorMessageSchedulerNotRunning = "Scheduler is not running"
)

// WebSocketServer attaches a websocket client to the realtime feed of a company.
type WebSocketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) error
}

type Handler struct {
	service  *service.Service
	sockets  WebSocketServer
	webhook  config.WebhookConfig
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(svc *service.Service, sockets WebSocketServer, webhook config.WebhookConfig, logger *zap.Logger) *Handler {
	return &Handler{
		service:  svc,
		sockets:  sockets,
		webhook:  webhook,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes returns the API router. Webhooks and the health check are public; everything else
// runs behind the Identity middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/whatsapp/webhook", h.Webhook)
		r.Post("/whatsapp/webhook/{connectionId}", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity)

			r.Get("/ws", h.WebSocket)

			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", h.ListTickets)
				r.Post("/", h.OpenTicket)
				r.Get("/stats", h.TicketStats)
				r.Put("/{id}/start", h.StartTicket)
				r.Put("/{id}/assign", h.AssignTicket)
				r.Put("/{id}/finish", h.FinishTicket)
				r.Put("/{id}/cancel", h.CancelTicket)
				r.Patch("/{id}/priority", h.UpdatePriority)
				r.Get("/{id}/messages", h.TicketMessages)
				r.Post("/{id}/messages", h.SendMessage)
			})

			r.Post("/scheduler/start", h.StartScheduler)
			r.Post("/scheduler/stop", h.StopScheduler)
		})
	})

	return r
}

// sendServiceError maps service, repository and gateway errors to API errors.
func (h *Handler) sendServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var upstream *gateway.UpstreamError

	switch {
	case errors.Is(err, service.ErrValidation):
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.ErrorCodeValidation, err.Error())
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, tenant.ErrMissingTenant):
		middleware.WriteError(w, r, http.StatusUnauthorized, middleware.ErrorCodeUnauthenticated, middleware.ErrorMessageUnauthenticated)
	case errors.Is(err, service.ErrForbidden):
		middleware.WriteError(w, r, http.StatusForbidden, middleware.ErrorCodeForbidden, errorMessageForbidden)
	case errors.Is(err, repository.ErrNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, middleware.ErrorCodeNotFound, errorMessageNotFound)
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, repository.ErrConflict):
		middleware.WriteError(w, r, http.StatusConflict, middleware.ErrorCodeConflict, errorMessageConflict)
	case errors.Is(err, gateway.ErrCircuitOpen):
		middleware.WriteError(w, r, http.StatusServiceUnavailable, errorCodeGatewayUnavailable, errorMessageGatewayUnavailable)
	case errors.As(err, &upstream):
		h.logger.Warn("Gateway rejected request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("action", action),
			zap.Int("upstream_status", upstream.StatusCode))
		middleware.WriteErrorDetails(w, r, http.StatusInternalServerError, middleware.ErrorCodeGateway, errorMessageGateway, upstream.Body)
	default:
		h.logger.Error("Request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("action", action),
			zap.Error(err))
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, middleware.ErrorMessageInternal)
	}
}

func (h *Handler) sendValidationError(w http.ResponseWriter, r *http.Request, message string) {
	middleware.WriteError(w, r, http.StatusBadRequest, middleware.ErrorCodeValidation, message)
}
