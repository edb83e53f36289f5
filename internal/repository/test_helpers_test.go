package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

func insertTestCompany(t *testing.T, db *sqlx.DB, name string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRow(`INSERT INTO companies (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertTestUser(t *testing.T, db *sqlx.DB, companyID uuid.UUID, role tenant.Role) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRow(
		`INSERT INTO users (company_id, name, email, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		companyID, "Agent", uuid.NewString()+"@example.com", string(role),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertTestConnection(t *testing.T, db *sqlx.DB, companyID uuid.UUID, instance string, active bool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRow(
		`INSERT INTO connections (company_id, name, provider, instance_name, is_active)
		 VALUES ($1, $2, 'evolution', $2, $3) RETURNING id`,
		companyID, instance, active,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertTestTag(t *testing.T, db *sqlx.DB, companyID, clientID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRow(`INSERT INTO tags (company_id, name) VALUES ($1, $2) RETURNING id`, companyID, name).Scan(&id)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO client_tags (client_id, tag_id) VALUES ($1, $2)`, clientID, id)
	require.NoError(t, err)
	return id
}

func createTestClient(t *testing.T, ctx context.Context, repo repository.Repository, phone string) *models.Client {
	t.Helper()
	client := &models.Client{Name: "Client " + phone, Phone: phone, PhoneDisplay: "+" + phone}
	_, err := repo.Client().Upsert(ctx, client)
	require.NoError(t, err)
	return client
}

func createTestConversation(t *testing.T, ctx context.Context, repo repository.Repository, clientID uuid.UUID, protocol string) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{ClientID: clientID, ProtocolNumber: protocol}
	created, err := repo.Conversation().CreateOpen(ctx, conv)
	require.NoError(t, err)
	require.True(t, created)
	return conv
}

func ptr[T any](v T) *T {
	return &v
}
