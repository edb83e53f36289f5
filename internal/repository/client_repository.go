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

const clientColumns = `id, company_id, name, phone, phone_display, email, created_at, updated_at`

type clientRepository struct {
	db sqlx.ExtContext
}

func NewClientRepository(db sqlx.ExtContext) ClientRepository {
	return &clientRepository{db: db}
}

// Upsert finds or creates the client in one statement. A stored name is only replaced while it
// is still empty or a bare phone number; a stored email is never overwritten.
func (r *clientRepository) Upsert(ctx context.Context, client *models.Client) (bool, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return false, err
	}

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}

	query := `
		INSERT INTO clients (id, company_id, name, phone, phone_display, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (company_id, phone) DO UPDATE SET
			name = CASE
				WHEN clients.name = '' OR clients.name = clients.phone
				THEN COALESCE(NULLIF(EXCLUDED.name, ''), clients.name)
				ELSE clients.name
			END,
			email = COALESCE(clients.email, EXCLUDED.email),
			phone_display = EXCLUDED.phone_display,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + clientColumns + `, (xmax = 0) AS inserted
	`

	var row struct {
		models.Client
		Inserted bool `db:"inserted"`
	}
	err = sqlx.GetContext(ctx, r.db, &row, query,
		client.ID, companyID, client.Name, client.Phone, client.PhoneDisplay, client.Email, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to upsert client: %w", err)
	}

	*client = row.Client
	return row.Inserted, nil
}

// GetByID retrieves a client of the current company.
func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + clientColumns + ` FROM clients WHERE company_id = $1 AND id = $2`

	var client models.Client
	if err := sqlx.GetContext(ctx, r.db, &client, query, companyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

// GetByPhone retrieves a client by its normalized phone key.
func (r *clientRepository) GetByPhone(ctx context.Context, phone string) (*models.Client, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + clientColumns + ` FROM clients WHERE company_id = $1 AND phone = $2`

	var client models.Client
	if err := sqlx.GetContext(ctx, r.db, &client, query, companyID, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client by phone: %w", err)
	}
	return &client, nil
}
