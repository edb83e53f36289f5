// Package events publishes integration events about inbox activity to a RabbitMQ topic
// exchange so that other services (CRM sync, analytics, bots) can react to them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types. The routing key equals the type.
const (
	TypeMessageReceived      = "inbox.message.received.v1"
	TypeConversationCreated  = "inbox.conversation.created.v1"
	TypeConversationAssigned = "inbox.conversation.assigned.v1"
	TypeConversationFinished = "inbox.conversation.finished.v1"
)

type Meta struct {
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Producer      *string   `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	// Type is the event name and version, e.g. inbox.message.received.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope wraps data with a fresh id and the current time.
func NewEnvelope(eventType, producer, correlationID string, data any) Envelope {
	meta := Meta{
		ID:   uuid.NewString(),
		Time: time.Now().UTC(),
		Type: eventType,
	}
	if producer != "" {
		meta.Producer = &producer
	}
	if correlationID != "" {
		meta.CorrelationID = &correlationID
	}
	return Envelope{Meta: meta, Data: data}
}

type MessageReceivedV1 struct {
	CompanyID      uuid.UUID `json:"company_id"`
	ConnectionID   uuid.UUID `json:"connection_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	ClientID       uuid.UUID `json:"client_id"`
	ClientPhone    string    `json:"client_phone"`
	ExternalID     string    `json:"external_id,omitempty"`
	Kind           string    `json:"kind"`
	Content        string    `json:"content"`
	ReceivedAt     time.Time `json:"received_at"`
}

type ConversationCreatedV1 struct {
	CompanyID      uuid.UUID  `json:"company_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	ClientID       uuid.UUID  `json:"client_id"`
	ProtocolNumber string     `json:"protocol_number"`
	AssignedTo     *uuid.UUID `json:"assigned_to,omitempty"`
	QueueID        *uuid.UUID `json:"queue_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ConversationAssignedV1 struct {
	CompanyID      uuid.UUID `json:"company_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	AssignedBy     uuid.UUID `json:"assigned_by"`
	AssignedAt     time.Time `json:"assigned_at"`
}

type ConversationFinishedV1 struct {
	CompanyID      uuid.UUID `json:"company_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ProtocolNumber string    `json:"protocol_number"`
	Status         string    `json:"status"`
	FinishedBy     uuid.UUID `json:"finished_by"`
	FinishedAt     time.Time `json:"finished_at"`
}
