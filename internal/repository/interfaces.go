package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/wa-inbox/internal/models"
)

// Repository interface defines all repository operations.
//
// Tenant-scoped methods read the company from the context (tenant.CompanyID) and fail with
// tenant.ErrMissingTenant when it is absent. The only unscoped reads are the connection
// lookups used to resolve the tenant of an inbound webhook.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	// WithTx runs fn inside a single database transaction.
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	Client() ClientRepository
	Conversation() ConversationRepository
	Message() MessageRepository
	Connection() ConnectionRepository
	Protocol() ProtocolRepository
	User() UserRepository
	Tag() TagRepository
	Template() TemplateRepository
	Rule() RuleRepository
}

// ClientRepository interface defines client operations.
type ClientRepository interface {
	// Upsert inserts the client or, when the phone already exists, fills a missing name/email
	// on the stored row. client is updated in place; created reports whether a row was inserted.
	Upsert(ctx context.Context, client *models.Client) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetByPhone(ctx context.Context, phone string) (*models.Client, error)
}

// ConversationRepository interface defines conversation operations.
type ConversationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindOpenByClient(ctx context.Context, clientID uuid.UUID) (*models.Conversation, error)
	// CreateOpen inserts conv unless the client already has an open conversation, in which
	// case conv is overwritten with the existing one and created is false.
	CreateOpen(ctx context.Context, conv *models.Conversation) (created bool, err error)
	List(ctx context.Context, filter models.ConversationFilter) ([]*models.Ticket, int64, error)
	CountByStatus(ctx context.Context, assignedTo *uuid.UUID) (*models.StatusCounts, error)
	// TouchLastMessage records the latest message preview. Inbound messages bump the unread
	// count and move unassigned conversations back to waiting; outbound ones clear it.
	TouchLastMessage(ctx context.Context, id uuid.UUID, preview string, at time.Time, inbound bool) (*models.Conversation, error)
	Start(ctx context.Context, id, agentID uuid.UUID) (*models.Conversation, error)
	Assign(ctx context.Context, id, agentID uuid.UUID) (*models.Conversation, error)
	Finish(ctx context.Context, id uuid.UUID, at time.Time) (*models.Conversation, error)
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*models.Conversation, error)
	UpdatePriority(ctx context.Context, id uuid.UUID, priority models.Priority) (*models.Conversation, error)
}

// MessageRepository interface defines message operations.
type MessageRepository interface {
	// Create inserts msg; created is false when a message with the same external id exists.
	Create(ctx context.Context, msg *models.Message) (created bool, err error)
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error)
	// UpdateStatusByExternalID applies status only when it ranks above the stored one.
	UpdateStatusByExternalID(ctx context.Context, externalID string, status models.DeliveryStatus) (*models.Message, error)
}

// ConnectionRepository interface defines gateway connection operations.
type ConnectionRepository interface {
	// GetByID is unscoped.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	// GetByInstance is unscoped.
	GetByInstance(ctx context.Context, instance string) (*models.Connection, error)
	// FindSoleActive returns the only active connection of the deployment. It fails with
	// ErrNotFound when there is none and ErrConflict when there are several.
	FindSoleActive(ctx context.Context) (*models.Connection, error)
	// ListActive is unscoped.
	ListActive(ctx context.Context) ([]*models.Connection, error)
	GetActive(ctx context.Context) (*models.Connection, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus) error
}

// ProtocolRepository interface defines protocol sequence operations.
type ProtocolRepository interface {
	// NextValue atomically increments and returns the company's sequence for day.
	NextValue(ctx context.Context, day time.Time) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type TagRepository interface {
	ListByClients(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID][]models.Tag, error)
}

type TemplateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
}

type RuleRepository interface {
	// ListActive returns active auto-assign rules in evaluation order.
	ListActive(ctx context.Context) ([]*models.AutoAssignRule, error)
}
