package handler

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/middleware"
)

// WebhookSecretHeader carries the shared secret configured on the gateway provider.
const WebhookSecretHeader = "X-Webhook-Secret"

const defaultWebhookBodyBytes = 1 << 20

type webhookResponse struct {
	Success bool `json:"success"`
}

// Webhook acknowledges a gateway event immediately and hands the payload to the ingestion
// service. Processing failures are logged, never reported to the gateway.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.webhookAuthorized(r) {
		middleware.WriteError(w, r, http.StatusUnauthorized, middleware.ErrorCodeUnauthenticated, "Invalid webhook secret")
		return
	}

	var connectionID *uuid.UUID
	if raw := chi.URLParam(r, "connectionId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.sendValidationError(w, r, "Invalid connection id")
			return
		}
		connectionID = &id
	}

	limit := h.webhook.MaxBodyBytes
	if limit <= 0 {
		limit = defaultWebhookBodyBytes
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, middleware.ErrorCodeValidation, "Webhook payload too large")
			return
		}
		h.logger.Warn("Failed to read webhook body",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendValidationError(w, r, errorMessageInvalidBody)
		return
	}

	h.service.Ingestion.Enqueue(body, connectionID)

	render.JSON(w, r, webhookResponse{Success: true})
}

func (h *Handler) webhookAuthorized(r *http.Request) bool {
	if h.webhook.Secret == "" {
		return true
	}
	got := r.Header.Get(WebhookSecretHeader)
	if got == "" {
		got = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.webhook.Secret)) == 1
}
