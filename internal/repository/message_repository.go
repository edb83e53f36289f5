package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

const messageColumns = `id, company_id, conversation_id, content, type, direction, status, media_url,
	media_mime_type, media_caption, media_duration, file_name, external_id, sent_at, created_at, updated_at`

// statusRankSQL mirrors models.DeliveryStatus.Rank.
const statusRankSQL = `CASE status
		WHEN 'pending' THEN 0
		WHEN 'delivered' THEN 2
		WHEN 'read' THEN 3
		ELSE 1
	END`

type messageRepository struct {
	db sqlx.ExtContext
}

func NewMessageRepository(db sqlx.ExtContext) MessageRepository {
	return &messageRepository{db: db}
}

// Create inserts a message. The partial unique index on external_id makes redelivered
// provider events a no-op.
func (r *messageRepository) Create(ctx context.Context, msg *models.Message) (bool, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return false, err
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	msg.CompanyID = companyID

	query := `
		INSERT INTO messages (id, company_id, conversation_id, content, type, direction, status,
			media_url, media_mime_type, media_caption, media_duration, file_name, external_id,
			sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (company_id, external_id) WHERE external_id IS NOT NULL DO NOTHING
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowxContext(ctx, query,
		msg.ID, companyID, msg.ConversationID, msg.Content, msg.Type, msg.Direction, msg.Status,
		msg.MediaURL, msg.MediaMimeType, msg.MediaCaption, msg.MediaDuration, msg.FileName, msg.ExternalID,
		msg.SentAt, time.Now(),
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create message: %w", err)
	}

	return true, nil
}

// ExistsByExternalID reports whether the provider message id was already stored.
func (r *messageRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return false, err
	}

	query := `SELECT EXISTS (SELECT 1 FROM messages WHERE company_id = $1 AND external_id = $2)`

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, companyID, externalID); err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}
	return exists, nil
}

// ListByConversation returns messages oldest first.
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE company_id = $1 AND conversation_id = $2
		ORDER BY sent_at ASC, created_at ASC
		LIMIT $3
	`

	messages := []*models.Message{}
	if err := sqlx.SelectContext(ctx, r.db, &messages, query, companyID, conversationID, limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// UpdateStatusByExternalID returns ErrNotFound when no message matches or the update would
// downgrade the stored status.
func (r *messageRepository) UpdateStatusByExternalID(ctx context.Context, externalID string, status models.DeliveryStatus) (*models.Message, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE messages
		SET status = $3, updated_at = NOW()
		WHERE company_id = $1 AND external_id = $2 AND ` + statusRankSQL + ` < $4
		RETURNING ` + messageColumns

	var msg models.Message
	err = sqlx.GetContext(ctx, r.db, &msg, query, companyID, externalID, status, status.Rank())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update message status: %w", err)
	}
	return &msg, nil
}
