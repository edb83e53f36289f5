package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

const connectionColumns = `id, company_id, name, provider, instance_name, token, phone_number, status,
	is_active, created_at, updated_at`

type connectionRepository struct {
	db sqlx.ExtContext
}

func NewConnectionRepository(db sqlx.ExtContext) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Connection, error) {
	var conn models.Connection
	if err := sqlx.GetContext(ctx, r.db, &conn, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &conn, nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	return r.getOne(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
}

func (r *connectionRepository) GetByInstance(ctx context.Context, instance string) (*models.Connection, error) {
	return r.getOne(ctx, `SELECT `+connectionColumns+` FROM connections WHERE instance_name = $1`, instance)
}

func (r *connectionRepository) FindSoleActive(ctx context.Context) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE is_active LIMIT 2`

	var conns []*models.Connection
	if err := sqlx.SelectContext(ctx, r.db, &conns, query); err != nil {
		return nil, fmt.Errorf("failed to find active connection: %w", err)
	}

	switch len(conns) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return conns[0], nil
	default:
		return nil, fmt.Errorf("more than one active connection: %w", ErrConflict)
	}
}

func (r *connectionRepository) ListActive(ctx context.Context) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE is_active ORDER BY company_id, name`

	conns := []*models.Connection{}
	if err := sqlx.SelectContext(ctx, r.db, &conns, query); err != nil {
		return nil, fmt.Errorf("failed to list active connections: %w", err)
	}
	return conns, nil
}

// GetActive returns the current company's active connection.
func (r *connectionRepository) GetActive(ctx context.Context) (*models.Connection, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, `SELECT `+connectionColumns+` FROM connections WHERE company_id = $1 AND is_active`, companyID)
}

func (r *connectionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus) error {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return err
	}

	query := `UPDATE connections SET status = $3, updated_at = NOW() WHERE company_id = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, companyID, id, status)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
