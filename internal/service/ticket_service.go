package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/events"
	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

const (
	DefaultPageSize     = 20
	MaxPageSize         = 100
	DefaultMessageLimit = 100
	MaxMessageLimit     = 500
)

type ticketService struct {
	repo     repository.Repository
	protocol ProtocolService
	gateway  gateway.Client
	notify   *Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewTicketService(
	repo repository.Repository,
	protocol ProtocolService,
	gw gateway.Client,
	notify *Notifier,
	logger *zap.Logger,
) TicketService {
	return &ticketService{
		repo:     repo,
		protocol: protocol,
		gateway:  gw,
		notify:   notify,
		now:      time.Now,
		logger:   logger,
	}
}

func identity(ctx context.Context) (tenant.Identity, error) {
	id, ok := tenant.IdentityFrom(ctx)
	if !ok {
		return tenant.Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// authorize limits agents to the tickets assigned to them.
func authorize(id tenant.Identity, conv *models.Conversation) error {
	if id.IsAgent() && !conv.AssignedTo(id.UserID) {
		return ErrForbidden
	}
	return nil
}

func transitionError(id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("ticket %s: %w", id, ErrInvalidTransition)
	}
	return err
}

// List narrows agents to their own tickets regardless of the requested assignee.
func (s *ticketService) List(ctx context.Context, filter models.ConversationFilter) (*TicketList, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}

	if id.IsAgent() {
		filter.AssignedTo = &id.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}

	tickets, total, err := s.repo.Conversation().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	s.attachTags(ctx, tickets)

	totalPages := int(total) / filter.Limit
	if int(total)%filter.Limit > 0 {
		totalPages++
	}

	return &TicketList{
		Tickets: tickets,
		Pagination: Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *ticketService) attachTags(ctx context.Context, tickets []*models.Ticket) {
	for _, t := range tickets {
		t.Tags = []models.Tag{}
	}
	if len(tickets) == 0 {
		return
	}

	seen := make(map[uuid.UUID]struct{}, len(tickets))
	clientIDs := make([]uuid.UUID, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := seen[t.ClientID]; ok {
			continue
		}
		seen[t.ClientID] = struct{}{}
		clientIDs = append(clientIDs, t.ClientID)
	}

	tags, err := s.repo.Tag().ListByClients(ctx, clientIDs)
	if err != nil {
		s.logger.Warn("Failed to load client tags", zap.Error(err))
		return
	}
	for _, t := range tickets {
		if clientTags, ok := tags[t.ClientID]; ok {
			t.Tags = clientTags
		}
	}
}

func (s *ticketService) Stats(ctx context.Context) (*TicketStats, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}

	var assignedTo *uuid.UUID
	if id.IsAgent() {
		assignedTo = &id.UserID
	}

	counts, err := s.repo.Conversation().CountByStatus(ctx, assignedTo)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	return &TicketStats{
		All:        counts.All,
		Open:       counts.Waiting,
		InProgress: counts.InProgress,
		Closed:     counts.Completed,
		Canceled:   counts.Closed,
	}, nil
}

// Open starts a ticket for clientID assigned to the caller. It fails with
// repository.ErrConflict when the client already has an open ticket.
func (s *ticketService) Open(ctx context.Context, clientID uuid.UUID) (*models.Conversation, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Client().GetByID(ctx, clientID); err != nil {
		return nil, fmt.Errorf("client %s: %w", clientID, err)
	}

	conv := &models.Conversation{
		ClientID:        clientID,
		AssignedAgentID: &id.UserID,
		Status:          models.ConversationStatusInProgress,
		Priority:        models.PriorityNormal,
	}

	conn, err := s.repo.Connection().GetActive(ctx)
	switch {
	case err == nil:
		conv.ConnectionID = &conn.ID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to load active connection: %w", err)
	}

	var created bool
	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		number, err := s.protocol.Next(ctx, tx)
		if err != nil {
			return err
		}
		conv.ProtocolNumber = number

		created, err = tx.Conversation().CreateOpen(ctx, conv)
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("client %s already has open ticket %s: %w", clientID, conv.ProtocolNumber, repository.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.conversationCreated(ctx, conv, "")
	return conv, nil
}

// load fetches a ticket of the caller's company and checks agent access.
func (s *ticketService) load(ctx context.Context, ticketID uuid.UUID) (tenant.Identity, *models.Conversation, error) {
	id, err := identity(ctx)
	if err != nil {
		return id, nil, err
	}

	conv, err := s.repo.Conversation().GetByID(ctx, ticketID)
	if err != nil {
		return id, nil, fmt.Errorf("ticket %s: %w", ticketID, err)
	}
	return id, conv, nil
}

// Start lets the caller take a waiting ticket. Agents may take unassigned tickets.
func (s *ticketService) Start(ctx context.Context, ticketID uuid.UUID) (*models.Conversation, error) {
	id, conv, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if id.IsAgent() && conv.AssignedAgentID != nil && !conv.AssignedTo(id.UserID) {
		return nil, ErrForbidden
	}

	updated, err := s.repo.Conversation().Start(ctx, ticketID, id.UserID)
	if err != nil {
		return nil, transitionError(ticketID, err)
	}

	s.notify.conversationUpdated(ctx, updated)
	s.emitAssigned(ctx, updated, id)
	return updated, nil
}

func (s *ticketService) Assign(ctx context.Context, ticketID, agentID uuid.UUID) (*models.Conversation, error) {
	id, conv, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if id.IsAgent() && agentID != id.UserID {
		return nil, ErrForbidden
	}
	if id.IsAgent() && conv.AssignedAgentID != nil && !conv.AssignedTo(id.UserID) {
		return nil, ErrForbidden
	}

	if _, err := s.repo.User().GetByID(ctx, agentID); err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, err)
	}

	updated, err := s.repo.Conversation().Assign(ctx, ticketID, agentID)
	if err != nil {
		return nil, transitionError(ticketID, err)
	}

	s.logger.Info("Ticket assigned",
		zap.String("conversation_id", ticketID.String()),
		zap.String("agent_id", agentID.String()),
		zap.String("by", id.UserID.String()))

	s.notify.conversationUpdated(ctx, updated)
	s.emitAssigned(ctx, updated, id)
	return updated, nil
}

func (s *ticketService) emitAssigned(ctx context.Context, conv *models.Conversation, by tenant.Identity) {
	if conv.AssignedAgentID == nil {
		return
	}
	s.notify.emit(ctx, events.TypeConversationAssigned, conv.ProtocolNumber, events.ConversationAssignedV1{
		CompanyID:      conv.CompanyID,
		ConversationID: conv.ID,
		AgentID:        *conv.AssignedAgentID,
		AssignedBy:     by.UserID,
		AssignedAt:     conv.UpdatedAt,
	})
}

// Finish completes a ticket that is in progress. Finished tickets keep their finishedAt.
func (s *ticketService) Finish(ctx context.Context, ticketID uuid.UUID) (*models.Conversation, error) {
	return s.finish(ctx, ticketID, s.repo.Conversation().Finish)
}

// Cancel closes a waiting or in-progress ticket.
func (s *ticketService) Cancel(ctx context.Context, ticketID uuid.UUID) (*models.Conversation, error) {
	return s.finish(ctx, ticketID, s.repo.Conversation().Cancel)
}

func (s *ticketService) finish(
	ctx context.Context,
	ticketID uuid.UUID,
	apply func(ctx context.Context, id uuid.UUID, at time.Time) (*models.Conversation, error),
) (*models.Conversation, error) {
	id, conv, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(id, conv); err != nil {
		return nil, err
	}

	updated, err := apply(ctx, ticketID, s.now())
	if err != nil {
		return nil, transitionError(ticketID, err)
	}

	s.notify.conversationUpdated(ctx, updated)

	finishedAt := s.now()
	if updated.FinishedAt != nil {
		finishedAt = *updated.FinishedAt
	}
	s.notify.emit(ctx, events.TypeConversationFinished, updated.ProtocolNumber, events.ConversationFinishedV1{
		CompanyID:      updated.CompanyID,
		ConversationID: updated.ID,
		ProtocolNumber: updated.ProtocolNumber,
		Status:         string(updated.Status),
		FinishedBy:     id.UserID,
		FinishedAt:     finishedAt,
	})
	return updated, nil
}

func (s *ticketService) UpdatePriority(ctx context.Context, ticketID uuid.UUID, priority models.Priority) (*models.Conversation, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}

	id, conv, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(id, conv); err != nil {
		return nil, err
	}

	updated, err := s.repo.Conversation().UpdatePriority(ctx, ticketID, priority)
	if err != nil {
		return nil, transitionError(ticketID, err)
	}

	s.notify.conversationUpdated(ctx, updated)
	return updated, nil
}

func (s *ticketService) Messages(ctx context.Context, ticketID uuid.UUID, limit int) (*ConversationMessages, error) {
	id, conv, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(id, conv); err != nil {
		return nil, err
	}

	if limit < 1 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	messages, err := s.repo.Message().ListByConversation(ctx, ticketID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return &ConversationMessages{Conversation: conv, Messages: messages}, nil
}

// SendMessage delivers a reply through the ticket's connection and stores it as outgoing.
func (s *ticketService) SendMessage(ctx context.Context, ticketID uuid.UUID, input SendMessageInput) (*models.Message, error) {
	id, conv, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(id, conv); err != nil {
		return nil, err
	}
	if conv.Finished {
		return nil, fmt.Errorf("ticket %s is finished: %w", ticketID, ErrInvalidTransition)
	}

	client, err := s.repo.Client().GetByID(ctx, conv.ClientID)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", conv.ClientID, err)
	}

	text := input.Text
	if input.TemplateID != nil {
		tpl, err := s.repo.Template().GetByID(ctx, *input.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", *input.TemplateID, err)
		}
		text = tpl.Render(client.Name, conv.ProtocolNumber)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is empty", ErrValidation)
	}

	conn, err := s.connectionFor(ctx, conv)
	if err != nil {
		return nil, err
	}

	externalID, err := s.gateway.SendText(ctx, conn, client.Phone, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		Content:        text,
		Type:           models.MessageTypeText,
		Direction:      models.DirectionOutgoing,
		Status:         models.DeliveryStatusSent,
		ExternalID:     optional(externalID),
		SentAt:         s.now(),
	}
	if _, err := s.repo.Message().Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("message sent but not stored: %w", err)
	}

	if updated, err := s.repo.Conversation().TouchLastMessage(ctx, conv.ID, preview(text), msg.SentAt, false); err != nil {
		s.logger.Warn("Failed to update conversation preview",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err))
	} else {
		conv = updated
	}

	s.notify.messageCreated(ctx, msg)
	s.notify.conversationUpdated(ctx, conv)
	return msg, nil
}

// connectionFor returns the ticket's connection, else the company's active one.
func (s *ticketService) connectionFor(ctx context.Context, conv *models.Conversation) (*models.Connection, error) {
	if conv.ConnectionID != nil {
		conn, err := s.repo.Connection().GetByID(ctx, *conv.ConnectionID)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", *conv.ConnectionID, err)
		}
		// GetByID is unscoped.
		if conn.CompanyID != conv.CompanyID {
			return nil, ErrForbidden
		}
		return conn, nil
	}

	conn, err := s.repo.Connection().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("active connection: %w", err)
	}
	return conn, nil
}
