package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/wa-inbox/internal/tenant"
)

type protocolRepository struct {
	db sqlx.ExtContext
}

func NewProtocolRepository(db sqlx.ExtContext) ProtocolRepository {
	return &protocolRepository{db: db}
}

func (r *protocolRepository) NextValue(ctx context.Context, day time.Time) (int64, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO protocol_sequences (company_id, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, day) DO UPDATE
		SET last_value = protocol_sequences.last_value + 1
		RETURNING last_value
	`

	var value int64
	if err := sqlx.GetContext(ctx, r.db, &value, query, companyID, day.Format("2006-01-02")); err != nil {
		return 0, fmt.Errorf("failed to increment protocol sequence: %w", err)
	}
	return value, nil
}
