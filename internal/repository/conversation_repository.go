package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

const conversationColumns = `id, company_id, client_id, connection_id, queue_id, assigned_agent_id, status,
	priority, protocol_number, last_message, last_message_at, unread_count, finished, finished_at,
	created_at, updated_at`

var ticketColumns = []string{
	"c.id", "c.company_id", "c.client_id", "c.connection_id", "c.queue_id", "c.assigned_agent_id",
	"c.status", "c.priority", "c.protocol_number", "c.last_message", "c.last_message_at",
	"c.unread_count", "c.finished", "c.finished_at", "c.created_at", "c.updated_at",
	"cl.name AS client_name", "cl.phone AS client_phone",
}

type conversationRepository struct {
	db sqlx.ExtContext
}

func NewConversationRepository(db sqlx.ExtContext) ConversationRepository {
	return &conversationRepository{db: db}
}

// GetByID retrieves a conversation of the current company.
func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE company_id = $1 AND id = $2`

	var conv models.Conversation
	if err := sqlx.GetContext(ctx, r.db, &conv, query, companyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// FindOpenByClient returns the client's unfinished conversation.
func (r *conversationRepository) FindOpenByClient(ctx context.Context, clientID uuid.UUID) (*models.Conversation, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE company_id = $1 AND client_id = $2 AND NOT finished
	`

	var conv models.Conversation
	if err := sqlx.GetContext(ctx, r.db, &conv, query, companyID, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open conversation: %w", err)
	}
	return &conv, nil
}

// CreateOpen relies on the partial unique index over open conversations, so two concurrent
// first messages from one client converge on a single row.
func (r *conversationRepository) CreateOpen(ctx context.Context, conv *models.Conversation) (bool, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return false, err
	}

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.Status == "" {
		conv.Status = models.ConversationStatusWaiting
	}
	if conv.Priority == "" {
		conv.Priority = models.PriorityNormal
	}

	query := `
		INSERT INTO conversations (id, company_id, client_id, connection_id, queue_id, assigned_agent_id,
			status, priority, protocol_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (company_id, client_id) WHERE NOT finished DO NOTHING
		RETURNING ` + conversationColumns

	var created models.Conversation
	err = sqlx.GetContext(ctx, r.db, &created, query,
		conv.ID, companyID, conv.ClientID, conv.ConnectionID, conv.QueueID, conv.AssignedAgentID,
		conv.Status, conv.Priority, conv.ProtocolNumber, time.Now())
	if err == nil {
		*conv = created
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("failed to create conversation: %w", ErrConflict)
		}
		return false, fmt.Errorf("failed to create conversation: %w", err)
	}

	existing, err := r.FindOpenByClient(ctx, conv.ClientID)
	if err != nil {
		return false, fmt.Errorf("failed to load concurrent open conversation: %w", err)
	}
	*conv = *existing
	return false, nil
}

func applyConversationFilter(sb *sqlbuilder.SelectBuilder, companyID uuid.UUID, f models.ConversationFilter) {
	sb.Where(sb.Equal("c.company_id", companyID))

	if f.Status != nil {
		sb.Where(sb.Equal("c.status", string(*f.Status)))
	}
	if f.AssignedTo != nil {
		sb.Where(sb.Equal("c.assigned_agent_id", *f.AssignedTo))
	}
	if f.ClientID != nil {
		sb.Where(sb.Equal("c.client_id", *f.ClientID))
	}
	if f.QueueID != nil {
		sb.Where(sb.Equal("c.queue_id", *f.QueueID))
	}
	if f.ProtocolNumber != "" {
		sb.Where(sb.Like("c.protocol_number", "%"+f.ProtocolNumber+"%"))
	}
	if f.DateFrom != nil {
		sb.Where(sb.GreaterEqualThan("c.created_at", *f.DateFrom))
	}
	if f.DateTo != nil {
		sb.Where(sb.LessThan("c.created_at", *f.DateTo))
	}
}

// List returns one page of tickets matching the filter plus the total match count.
func (r *conversationRepository) List(ctx context.Context, f models.ConversationFilter) ([]*models.Ticket, int64, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, 0, err
	}

	countSB := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSB.Select("COUNT(*)").From("conversations c")
	applyConversationFilter(countSB, companyID, f)

	countQuery, countArgs := countSB.Build()
	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(ticketColumns...).
		From("conversations c").
		Join("clients cl", "cl.id = c.client_id", "cl.company_id = c.company_id")
	applyConversationFilter(sb, companyID, f)
	sb.OrderBy("COALESCE(c.last_message_at, c.created_at) DESC", "c.id")
	if f.Limit > 0 {
		sb.Limit(f.Limit).Offset(f.Offset())
	}

	query, args := sb.Build()
	tickets := []*models.Ticket{}
	if err := sqlx.SelectContext(ctx, r.db, &tickets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, total, nil
}

// CountByStatus counts the company's tickets per status, optionally for one agent.
func (r *conversationRepository) CountByStatus(ctx context.Context, assignedTo *uuid.UUID) (*models.StatusCounts, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("status", "COUNT(*) AS total").
		From("conversations").
		Where(sb.Equal("company_id", companyID)).
		GroupBy("status")
	if assignedTo != nil {
		sb.Where(sb.Equal("assigned_agent_id", *assignedTo))
	}

	query, args := sb.Build()
	var rows []struct {
		Status models.ConversationStatus `db:"status"`
		Total  int64                     `db:"total"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count tickets by status: %w", err)
	}

	counts := &models.StatusCounts{}
	for _, row := range rows {
		counts.All += row.Total
		switch row.Status {
		case models.ConversationStatusWaiting:
			counts.Waiting = row.Total
		case models.ConversationStatusInProgress:
			counts.InProgress = row.Total
		case models.ConversationStatusCompleted:
			counts.Completed = row.Total
		case models.ConversationStatusClosed:
			counts.Closed = row.Total
		}
	}
	return counts, nil
}

// TouchLastMessage never touches a finished conversation and never un-assigns an agent.
func (r *conversationRepository) TouchLastMessage(ctx context.Context, id uuid.UUID, preview string, at time.Time, inbound bool) (*models.Conversation, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE conversations
		SET last_message = $3,
		    last_message_at = $4,
		    unread_count = CASE WHEN $5 THEN unread_count + 1 ELSE 0 END,
		    status = CASE WHEN $5 AND assigned_agent_id IS NULL THEN 'waiting' ELSE status END,
		    updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND NOT finished
		RETURNING ` + conversationColumns

	var conv models.Conversation
	if err := sqlx.GetContext(ctx, r.db, &conv, query, companyID, id, preview, at, inbound); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrFinished(ctx, id)
		}
		return nil, fmt.Errorf("failed to update last message: %w", err)
	}
	return &conv, nil
}

type transition struct {
	from    []models.ConversationStatus
	to      models.ConversationStatus
	agentID *uuid.UUID
	finish  bool
	at      time.Time
}

// apply moves an open conversation between statuses. It fails with ErrConflict when the row
// exists but is finished or not in one of the source statuses.
func (r *conversationRepository) apply(ctx context.Context, id uuid.UUID, t transition) (*models.Conversation, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	from := make([]string, len(t.from))
	for i, s := range t.from {
		from[i] = string(s)
	}

	query := `
		UPDATE conversations
		SET status = $3,
		    assigned_agent_id = COALESCE($4, assigned_agent_id),
		    finished = $5,
		    finished_at = CASE WHEN $5 THEN $6 ELSE finished_at END,
		    updated_at = $6
		WHERE company_id = $1 AND id = $2 AND NOT finished AND status = ANY($7)
		RETURNING ` + conversationColumns

	var conv models.Conversation
	err = sqlx.GetContext(ctx, r.db, &conv, query,
		companyID, id, t.to, t.agentID, t.finish, t.at, pq.Array(from))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrFinished(ctx, id)
		}
		return nil, fmt.Errorf("failed to update conversation status: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) missingOrFinished(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// Start hands a waiting conversation to agentID.
func (r *conversationRepository) Start(ctx context.Context, id, agentID uuid.UUID) (*models.Conversation, error) {
	return r.apply(ctx, id, transition{
		from:    []models.ConversationStatus{models.ConversationStatusWaiting},
		to:      models.ConversationStatusInProgress,
		agentID: &agentID,
		at:      time.Now(),
	})
}

// Assign (re)assigns an open conversation.
func (r *conversationRepository) Assign(ctx context.Context, id, agentID uuid.UUID) (*models.Conversation, error) {
	return r.apply(ctx, id, transition{
		from:    []models.ConversationStatus{models.ConversationStatusWaiting, models.ConversationStatusInProgress},
		to:      models.ConversationStatusInProgress,
		agentID: &agentID,
		at:      time.Now(),
	})
}

// Finish completes a conversation that is in progress.
func (r *conversationRepository) Finish(ctx context.Context, id uuid.UUID, at time.Time) (*models.Conversation, error) {
	return r.apply(ctx, id, transition{
		from:   []models.ConversationStatus{models.ConversationStatusInProgress},
		to:     models.ConversationStatusCompleted,
		finish: true,
		at:     at,
	})
}

// Cancel closes an open conversation without completing it.
func (r *conversationRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*models.Conversation, error) {
	return r.apply(ctx, id, transition{
		from:   []models.ConversationStatus{models.ConversationStatusWaiting, models.ConversationStatusInProgress},
		to:     models.ConversationStatusClosed,
		finish: true,
		at:     at,
	})
}

// UpdatePriority changes the priority of an open conversation.
func (r *conversationRepository) UpdatePriority(ctx context.Context, id uuid.UUID, priority models.Priority) (*models.Conversation, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE conversations
		SET priority = $3, updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND NOT finished
		RETURNING ` + conversationColumns

	var conv models.Conversation
	if err := sqlx.GetContext(ctx, r.db, &conv, query, companyID, id, priority); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrFinished(ctx, id)
		}
		return nil, fmt.Errorf("failed to update priority: %w", err)
	}
	return &conv, nil
}
