package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/service"
)

const dateLayout = "2006-01-02"

type openTicketRequest struct {
	ClientID uuid.UUID `json:"clientId" validate:"required"`
}

type assignTicketRequest struct {
	AgentID uuid.UUID `json:"agentId" validate:"required"`
}

type priorityRequest struct {
	Priority models.Priority `json:"priority" validate:"required,oneof=low normal high urgent"`
}

type sendMessageRequest struct {
	Text       string     `json:"text" validate:"required_without=TemplateID,max=4096"`
	TemplateID *uuid.UUID `json:"templateId"`
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTicketFilter(r.URL.Query())
	if err != nil {
		h.sendValidationError(w, r, err.Error())
		return
	}

	list, err := h.service.Tickets.List(r.Context(), filter)
	if err != nil {
		h.sendServiceError(w, r, err, "list tickets")
		return
	}

	render.JSON(w, r, list)
}

func (h *Handler) TicketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Tickets.Stats(r.Context())
	if err != nil {
		h.sendServiceError(w, r, err, "ticket stats")
		return
	}

	render.JSON(w, r, stats)
}

func (h *Handler) OpenTicket(w http.ResponseWriter, r *http.Request) {
	var req openTicketRequest
	if !h.decode(w, r, &req) {
		return
	}

	conv, err := h.service.Tickets.Open(r.Context(), req.ClientID)
	if err != nil {
		h.sendServiceError(w, r, err, "open ticket")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, conv)
}

func (h *Handler) StartTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Tickets.Start(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, r, err, "start ticket")
		return
	}

	render.JSON(w, r, conv)
}

func (h *Handler) AssignTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var req assignTicketRequest
	if !h.decode(w, r, &req) {
		return
	}

	conv, err := h.service.Tickets.Assign(r.Context(), id, req.AgentID)
	if err != nil {
		h.sendServiceError(w, r, err, "assign ticket")
		return
	}

	render.JSON(w, r, conv)
}

func (h *Handler) FinishTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Tickets.Finish(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, r, err, "finish ticket")
		return
	}

	render.JSON(w, r, conv)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Tickets.Cancel(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, r, err, "cancel ticket")
		return
	}

	render.JSON(w, r, conv)
}

func (h *Handler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var req priorityRequest
	if !h.decode(w, r, &req) {
		return
	}

	conv, err := h.service.Tickets.UpdatePriority(r.Context(), id, req.Priority)
	if err != nil {
		h.sendServiceError(w, r, err, "update priority")
		return
	}

	render.JSON(w, r, conv)
}

func (h *Handler) TicketMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.sendValidationError(w, r, "limit must be a positive integer")
			return
		}
		limit = n
	}

	result, err := h.service.Tickets.Messages(r.Context(), id, limit)
	if err != nil {
		h.sendServiceError(w, r, err, "list messages")
		return
	}

	render.JSON(w, r, result)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.service.Tickets.SendMessage(r.Context(), id, service.SendMessageInput{
		Text:       req.Text,
		TemplateID: req.TemplateID,
	})
	if err != nil {
		h.sendServiceError(w, r, err, "send message")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, msg)
}

func (h *Handler) ticketID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.sendValidationError(w, r, errorMessageInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into dst and validates it, replying 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendValidationError(w, r, errorMessageInvalidBody)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.sendValidationError(w, r, err.Error())
		return false
	}
	return true
}

func parseTicketFilter(q url.Values) (models.ConversationFilter, error) {
	var (
		filter models.ConversationFilter
		err    error
	)

	if raw := q.Get("status"); raw != "" {
		status := models.ConversationStatus(raw)
		if !status.Valid() {
			return filter, fmt.Errorf("unknown status %q", raw)
		}
		filter.Status = &status
	}
	if filter.AssignedTo, err = optionalUUID(q, "assignedTo"); err != nil {
		return filter, err
	}
	if filter.ClientID, err = optionalUUID(q, "clientId"); err != nil {
		return filter, err
	}
	if filter.QueueID, err = optionalUUID(q, "queueId"); err != nil {
		return filter, err
	}
	filter.ProtocolNumber = strings.TrimSpace(q.Get("protocolNumber"))

	if filter.DateFrom, err = optionalDate(q, "dateFrom", false); err != nil {
		return filter, err
	}
	if filter.DateTo, err = optionalDate(q, "dateTo", true); err != nil {
		return filter, err
	}

	if filter.Page, err = optionalInt(q, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = optionalInt(q, "limit"); err != nil {
		return filter, err
	}

	return filter, nil
}

func optionalUUID(q url.Values, key string) (*uuid.UUID, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID", key)
	}
	return &id, nil
}

// optionalDate accepts RFC 3339 timestamps and plain dates. A plain upper bound covers its
// whole day, since the listing treats dateTo as exclusive.
func optionalDate(q url.Values, key string, upper bool) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", key)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func optionalInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}
