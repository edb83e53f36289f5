package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

func TestMessageRepository_Create(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := tenant.WithCompany(context.Background(), insertTestCompany(t, db, "Acme"))
	client := createTestClient(t, ctx, repo, "5511999990060")
	conv := createTestConversation(t, ctx, repo, client.ID, "20261015000040")

	newMessage := func(externalID *string) *models.Message {
		return &models.Message{
			ConversationID: conv.ID,
			Content:        "oi",
			Type:           models.MessageTypeText,
			Direction:      models.DirectionIncoming,
			Status:         models.DeliveryStatusReceived,
			ExternalID:     externalID,
		}
	}

	created, err := repo.Message().Create(ctx, newMessage(ptr("ABC123")))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Message().Create(ctx, newMessage(ptr("ABC123")))
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := repo.Message().ExistsByExternalID(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, exists)

	created, err = repo.Message().Create(ctx, newMessage(nil))
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Message().Create(ctx, newMessage(nil))
	require.NoError(t, err)
	assert.True(t, created)

	other := tenant.WithCompany(context.Background(), insertTestCompany(t, db, "Other"))
	exists, err = repo.Message().ExistsByExternalID(other, "ABC123")
	require.NoError(t, err)
	assert.False(t, exists)

	messages, err := repo.Message().ListByConversation(ctx, conv.ID, 100)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func TestMessageRepository_UpdateStatusByExternalID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := tenant.WithCompany(context.Background(), insertTestCompany(t, db, "Acme"))
	client := createTestClient(t, ctx, repo, "5511999990061")
	conv := createTestConversation(t, ctx, repo, client.ID, "20261015000041")

	msg := &models.Message{
		ConversationID: conv.ID,
		Content:        "olá",
		Type:           models.MessageTypeText,
		Direction:      models.DirectionOutgoing,
		Status:         models.DeliveryStatusSent,
		ExternalID:     ptr("OUT-1"),
		SentAt:         time.Now(),
	}
	_, err := repo.Message().Create(ctx, msg)
	require.NoError(t, err)

	steps := []struct {
		status  models.DeliveryStatus
		wantErr error
		want    models.DeliveryStatus
	}{
		{status: models.DeliveryStatusDelivered, want: models.DeliveryStatusDelivered},
		{status: models.DeliveryStatusSent, wantErr: repository.ErrNotFound},
		{status: models.DeliveryStatusRead, want: models.DeliveryStatusRead},
		{status: models.DeliveryStatusDelivered, wantErr: repository.ErrNotFound},
	}

	for _, step := range steps {
		updated, err := repo.Message().UpdateStatusByExternalID(ctx, "OUT-1", step.status)
		if step.wantErr != nil {
			assert.ErrorIs(t, err, step.wantErr, step.status)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, step.want, updated.Status)
	}

	_, err = repo.Message().UpdateStatusByExternalID(ctx, "missing", models.DeliveryStatusRead)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
