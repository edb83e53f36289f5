package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

func TestRepository_TenantIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	companyA := insertTestCompany(t, db, "A")
	companyB := insertTestCompany(t, db, "B")
	ctxA := tenant.WithCompany(context.Background(), companyA)
	ctxB := tenant.WithCompany(context.Background(), companyB)

	client := createTestClient(t, ctxA, repo, "5511999990001")
	conv := createTestConversation(t, ctxA, repo, client.ID, "20261015000001")

	tests := []struct {
		name    string
		ctx     context.Context
		call    func(ctx context.Context) error
		wantErr error
	}{
		{
			name: "missing tenant fails closed",
			ctx:  context.Background(),
			call: func(ctx context.Context) error {
				_, err := repo.Conversation().GetByID(ctx, conv.ID)
				return err
			},
			wantErr: tenant.ErrMissingTenant,
		},
		{
			name: "other company cannot read conversation",
			ctx:  ctxB,
			call: func(ctx context.Context) error {
				_, err := repo.Conversation().GetByID(ctx, conv.ID)
				return err
			},
			wantErr: repository.ErrNotFound,
		},
		{
			name: "other company cannot finish conversation",
			ctx:  ctxB,
			call: func(ctx context.Context) error {
				_, err := repo.Conversation().Cancel(ctx, conv.ID, time.Now())
				return err
			},
			wantErr: repository.ErrNotFound,
		},
		{
			name: "other company cannot read client",
			ctx:  ctxB,
			call: func(ctx context.Context) error {
				_, err := repo.Client().GetByPhone(ctx, client.Phone)
				return err
			},
			wantErr: repository.ErrNotFound,
		},
		{
			name: "owner reads conversation",
			ctx:  ctxA,
			call: func(ctx context.Context) error {
				_, err := repo.Conversation().GetByID(ctx, conv.ID)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(tt.ctx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	tickets, total, err := repo.Conversation().List(ctxB, models.ConversationFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Zero(t, total)
}

func TestRepository_WithTx(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := tenant.WithCompany(context.Background(), insertTestCompany(t, db, "Acme"))

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithTx(ctx, func(tx repository.Repository) error {
			createTestClient(t, ctx, tx, "5511999990002")
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.Client().GetByPhone(ctx, "5511999990002")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("commit", func(t *testing.T) {
		err := repo.WithTx(ctx, func(tx repository.Repository) error {
			createTestClient(t, ctx, tx, "5511999990003")
			return nil
		})
		require.NoError(t, err)

		_, err = repo.Client().GetByPhone(ctx, "5511999990003")
		assert.NoError(t, err)
	})
}

func TestClientRepository_Upsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := tenant.WithCompany(context.Background(), insertTestCompany(t, db, "Acme"))

	first := &models.Client{Name: "", Phone: "5511999998888", PhoneDisplay: "+55 (11) 99999-8888"}
	created, err := repo.Client().Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &models.Client{Name: "Maria", Phone: "5511999998888", PhoneDisplay: "+55 (11) 99999-8888", Email: ptr("maria@example.com")}
	created, err = repo.Client().Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Maria", second.Name)
	require.NotNil(t, second.Email)

	third := &models.Client{Name: "Someone Else", Phone: "5511999998888", Email: ptr("other@example.com")}
	_, err = repo.Client().Upsert(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, "Maria", third.Name)
	assert.Equal(t, "maria@example.com", *third.Email)
}

func TestClientRepository_Upsert_Concurrent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := tenant.WithCompany(context.Background(), insertTestCompany(t, db, "Acme"))

	const workers = 10
	ids := make([]uuid.UUID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &models.Client{Phone: "5511988887777"}
			_, err := repo.Client().Upsert(ctx, c)
			assert.NoError(t, err)
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM clients WHERE phone = '5511988887777'`))
	assert.Equal(t, 1, count)
}

func TestProtocolRepository_NextValue_Concurrent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	companyA := insertTestCompany(t, db, "A")
	companyB := insertTestCompany(t, db, "B")
	ctxA := tenant.WithCompany(context.Background(), companyA)
	day := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	const workers = 20
	values := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := repo.Protocol().NextValue(ctxA, day)
			assert.NoError(t, err)
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool)
	for v := range values {
		assert.False(t, seen[v], "duplicate sequence value %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, workers)

	v, err := repo.Protocol().NextValue(tenant.WithCompany(context.Background(), companyB), day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = repo.Protocol().NextValue(ctxA, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestConnectionRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	companyA := insertTestCompany(t, db, "A")
	companyB := insertTestCompany(t, db, "B")

	connA := insertTestConnection(t, db, companyA, "acme-main", true)

	sole, err := repo.Connection().FindSoleActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, connA, sole.ID)

	byInstance, err := repo.Connection().GetByInstance(context.Background(), "acme-main")
	require.NoError(t, err)
	assert.Equal(t, companyA, byInstance.CompanyID)

	insertTestConnection(t, db, companyB, "beta-main", true)
	_, err = repo.Connection().FindSoleActive(context.Background())
	assert.ErrorIs(t, err, repository.ErrConflict)

	active, err := repo.Connection().ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)

	ctxA := tenant.WithCompany(context.Background(), companyA)
	require.NoError(t, repo.Connection().UpdateStatus(ctxA, connA, models.ConnectionStatusConnected))

	got, err := repo.Connection().GetActive(ctxA)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusConnected, got.Status)

	err = repo.Connection().UpdateStatus(tenant.WithCompany(context.Background(), companyB), connA, models.ConnectionStatusDisconnected)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDirectoryRepositories(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	companyID := insertTestCompany(t, db, "Acme")
	ctx := tenant.WithCompany(context.Background(), companyID)

	agentID := insertTestUser(t, db, companyID, tenant.RoleAgent)
	user, err := repo.User().GetByID(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, tenant.RoleAgent, user.Role)

	client := createTestClient(t, ctx, repo, "5511999990010")
	insertTestTag(t, db, companyID, client.ID, "vip")
	insertTestTag(t, db, companyID, client.ID, "billing")

	tags, err := repo.Tag().ListByClients(ctx, []uuid.UUID{client.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, tags[client.ID], 2)
	assert.Equal(t, "billing", tags[client.ID][0].Name)

	var templateID uuid.UUID
	require.NoError(t, db.QueryRow(
		`INSERT INTO templates (company_id, name, content) VALUES ($1, 'hello', 'Olá {{name}}') RETURNING id`,
		companyID).Scan(&templateID))
	tpl, err := repo.Template().GetByID(ctx, templateID)
	require.NoError(t, err)
	assert.Equal(t, "Olá {{name}}", tpl.Content)

	_, err = db.Exec(`INSERT INTO auto_assign_rules (company_id, name, priority_order, agent_id) VALUES ($1, 'second', 2, NULL), ($1, 'first', 1, $2)`,
		companyID, agentID)
	require.NoError(t, err)
	rules, err := repo.Rule().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "first", rules[0].Name)
	assert.Equal(t, agentID, *rules[0].AgentID)
}
