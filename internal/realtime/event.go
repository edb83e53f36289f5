// Package realtime pushes inbox events to connected browser clients over websockets.
package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventConversationCreated EventType = "conversation.created"
	EventConversationUpdated EventType = "conversation.updated"
	EventMessageCreated      EventType = "message.created"
	EventMessageStatus       EventType = "message.status"
	EventConnectionUpdated   EventType = "connection.updated"
)

// Event is the JSON frame written to websocket clients.
type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload, Timestamp: time.Now().UTC()}
}

// Publisher fans an event out to every client of a company.
type Publisher interface {
	Publish(ctx context.Context, companyID uuid.UUID, event Event) error
}
