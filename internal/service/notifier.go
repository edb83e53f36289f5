package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/events"
	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/realtime"
)

// Notifier publishes realtime frames and integration events. Failures are logged and never
// undo the state change that triggered them.
type Notifier struct {
	realtime realtime.Publisher
	events   events.Publisher
	producer string
	logger   *zap.Logger
}

func NewNotifier(rt realtime.Publisher, ev events.Publisher, producer string, logger *zap.Logger) *Notifier {
	return &Notifier{
		realtime: rt,
		events:   ev,
		producer: producer,
		logger:   logger,
	}
}

func (n *Notifier) push(ctx context.Context, companyID uuid.UUID, t realtime.EventType, payload any) {
	if err := n.realtime.Publish(ctx, companyID, realtime.NewEvent(t, payload)); err != nil {
		n.logger.Warn("Failed to publish realtime event",
			zap.String("company_id", companyID.String()),
			zap.String("type", string(t)),
			zap.Error(err))
	}
}

func (n *Notifier) emit(ctx context.Context, eventType, correlationID string, data any) {
	env := events.NewEnvelope(eventType, n.producer, correlationID, data)
	if err := n.events.Publish(ctx, env); err != nil {
		n.logger.Warn("Failed to publish integration event",
			zap.String("type", eventType),
			zap.String("event_id", env.Meta.ID),
			zap.Error(err))
	}
}

func (n *Notifier) conversationCreated(ctx context.Context, conv *models.Conversation, correlationID string) {
	n.push(ctx, conv.CompanyID, realtime.EventConversationCreated, conv)
	n.emit(ctx, events.TypeConversationCreated, correlationID, events.ConversationCreatedV1{
		CompanyID:      conv.CompanyID,
		ConversationID: conv.ID,
		ClientID:       conv.ClientID,
		ProtocolNumber: conv.ProtocolNumber,
		AssignedTo:     conv.AssignedAgentID,
		QueueID:        conv.QueueID,
		CreatedAt:      conv.CreatedAt,
	})
}

func (n *Notifier) conversationUpdated(ctx context.Context, conv *models.Conversation) {
	n.push(ctx, conv.CompanyID, realtime.EventConversationUpdated, conv)
}

func (n *Notifier) messageCreated(ctx context.Context, msg *models.Message) {
	n.push(ctx, msg.CompanyID, realtime.EventMessageCreated, msg)
}

func (n *Notifier) messageStatus(ctx context.Context, msg *models.Message) {
	n.push(ctx, msg.CompanyID, realtime.EventMessageStatus, map[string]any{
		"id":             msg.ID,
		"conversationId": msg.ConversationID,
		"externalId":     msg.ExternalID,
		"status":         msg.Status,
	})
}

func (n *Notifier) connectionUpdated(ctx context.Context, conn *models.Connection) {
	n.push(ctx, conn.CompanyID, realtime.EventConnectionUpdated, conn)
}
