package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/repository"
)

// IngestionService turns gateway webhook payloads into clients, conversations and messages.
type IngestionService interface {
	// Enqueue schedules body for asynchronous processing and returns immediately.
	// connectionID is the connection named in the webhook URL, if any.
	Enqueue(body []byte, connectionID *uuid.UUID)
	// Process handles one payload synchronously.
	Process(ctx context.Context, body []byte, connectionID *uuid.UUID) error
	// Shutdown rejects new payloads and waits for in-flight ones.
	Shutdown(ctx context.Context) error
}

type ProtocolService interface {
	// Next reserves the next protocol number of the context's company through repo, which may
	// be bound to a transaction.
	Next(ctx context.Context, repo repository.Repository) (string, error)
}

// TicketService implements the ticket lifecycle for the identity in the context.
type TicketService interface {
	List(ctx context.Context, filter models.ConversationFilter) (*TicketList, error)
	Stats(ctx context.Context) (*TicketStats, error)
	Open(ctx context.Context, clientID uuid.UUID) (*models.Conversation, error)
	Start(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	Assign(ctx context.Context, id, agentID uuid.UUID) (*models.Conversation, error)
	Finish(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	UpdatePriority(ctx context.Context, id uuid.UUID, priority models.Priority) (*models.Conversation, error)
	Messages(ctx context.Context, id uuid.UUID, limit int) (*ConversationMessages, error)
	SendMessage(ctx context.Context, id uuid.UUID, input SendMessageInput) (*models.Message, error)
}

type ConnectionService interface {
	// CheckConnections refreshes the status of every active connection from its gateway.
	CheckConnections(ctx context.Context) error
}

type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type HealthService interface {
	GetHealth(ctx context.Context) *HealthStatus
}

// IdempotencyStore is the fast-path record of processed message ids.
type IdempotencyStore interface {
	Seen(ctx context.Context, companyID uuid.UUID, externalID string) (bool, error)
	Mark(ctx context.Context, companyID uuid.UUID, externalID string) error
	Ping(ctx context.Context) error
}

// BreakerStatus reports the gateway circuit breaker.
type BreakerStatus interface {
	GetState() string
	GetCounts() (requests, failures uint32)
}
