package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

type userRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, company_id, name, email, role, created_at, updated_at
		FROM users
		WHERE company_id = $1 AND id = $2
	`

	var user models.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, companyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

type tagRepository struct {
	db sqlx.ExtContext
}

func NewTagRepository(db sqlx.ExtContext) TagRepository {
	return &tagRepository{db: db}
}

// ListByClients returns the tags of each given client, keyed by client id.
func (r *tagRepository) ListByClients(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID][]models.Tag, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID][]models.Tag, len(clientIDs))
	if len(clientIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT ct.client_id, t.id, t.company_id, t.name, t.color
		FROM client_tags ct
		JOIN tags t ON t.id = ct.tag_id
		WHERE t.company_id = $1 AND ct.client_id = ANY($2::uuid[])
		ORDER BY t.name
	`

	var rows []struct {
		ClientID uuid.UUID `db:"client_id"`
		models.Tag
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, companyID, pq.Array(uuidStrings(clientIDs))); err != nil {
		return nil, fmt.Errorf("failed to list client tags: %w", err)
	}

	for _, row := range rows {
		result[row.ClientID] = append(result[row.ClientID], row.Tag)
	}
	return result, nil
}

type templateRepository struct {
	db sqlx.ExtContext
}

func NewTemplateRepository(db sqlx.ExtContext) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, company_id, name, content, created_at, updated_at
		FROM templates
		WHERE company_id = $1 AND id = $2
	`

	var tpl models.Template
	if err := sqlx.GetContext(ctx, r.db, &tpl, query, companyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tpl, nil
}

type ruleRepository struct {
	db sqlx.ExtContext
}

func NewRuleRepository(db sqlx.ExtContext) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) ListActive(ctx context.Context) ([]*models.AutoAssignRule, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, company_id, name, connection_id, keyword, queue_id, agent_id, priority_order,
			is_active, created_at, updated_at
		FROM auto_assign_rules
		WHERE company_id = $1 AND is_active
		ORDER BY priority_order ASC, created_at ASC
	`

	rules := []*models.AutoAssignRule{}
	if err := sqlx.SelectContext(ctx, r.db, &rules, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to list auto-assign rules: %w", err)
	}
	return rules, nil
}
