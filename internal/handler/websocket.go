package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/middleware"
	"github.com/popeskul/wa-inbox/internal/realtime"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

// WebSocket subscribes the caller to realtime events of their company.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	companyID, err := tenant.CompanyID(r.Context())
	if err != nil {
		h.sendServiceError(w, r, err, "websocket")
		return
	}

	// After a successful upgrade the connection is hijacked, so errors can only be logged.
	if err := h.sockets.Serve(w, r, companyID); err != nil && !errors.Is(err, realtime.ErrHubClosed) {
		h.logger.Warn("Websocket session failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("company_id", companyID.String()),
			zap.Error(err))
	}
}
