package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	eventmocks "github.com/popeskul/wa-inbox/internal/events/mocks"
	gatewaymocks "github.com/popeskul/wa-inbox/internal/gateway/mocks"
	"github.com/popeskul/wa-inbox/internal/models"
	realtimemocks "github.com/popeskul/wa-inbox/internal/realtime/mocks"
	"github.com/popeskul/wa-inbox/internal/repository"
	repomocks "github.com/popeskul/wa-inbox/internal/repository/mocks"
	"github.com/popeskul/wa-inbox/internal/service"
	"github.com/popeskul/wa-inbox/internal/service/mocks"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

// deps bundles the mocks every service test needs.
type deps struct {
	repo          *repomocks.MockRepository
	clients       *repomocks.MockClientRepository
	conversations *repomocks.MockConversationRepository
	messages      *repomocks.MockMessageRepository
	connections   *repomocks.MockConnectionRepository
	protocols     *repomocks.MockProtocolRepository
	users         *repomocks.MockUserRepository
	tags          *repomocks.MockTagRepository
	templates     *repomocks.MockTemplateRepository
	rules         *repomocks.MockRuleRepository

	idempotency *mocks.MockIdempotencyStore
	gateway     *gatewaymocks.MockClient
	realtime    *realtimemocks.MockPublisher
	events      *eventmocks.MockPublisher

	notifier *service.Notifier
	logger   *zap.Logger
}

func newDeps(ctrl *gomock.Controller) *deps {
	d := &deps{
		repo:          repomocks.NewMockRepository(ctrl),
		clients:       repomocks.NewMockClientRepository(ctrl),
		conversations: repomocks.NewMockConversationRepository(ctrl),
		messages:      repomocks.NewMockMessageRepository(ctrl),
		connections:   repomocks.NewMockConnectionRepository(ctrl),
		protocols:     repomocks.NewMockProtocolRepository(ctrl),
		users:         repomocks.NewMockUserRepository(ctrl),
		tags:          repomocks.NewMockTagRepository(ctrl),
		templates:     repomocks.NewMockTemplateRepository(ctrl),
		rules:         repomocks.NewMockRuleRepository(ctrl),
		idempotency:   mocks.NewMockIdempotencyStore(ctrl),
		gateway:       gatewaymocks.NewMockClient(ctrl),
		realtime:      realtimemocks.NewMockPublisher(ctrl),
		events:        eventmocks.NewMockPublisher(ctrl),
		logger:        zap.NewNop(),
	}

	d.repo.EXPECT().Client().Return(d.clients).AnyTimes()
	d.repo.EXPECT().Conversation().Return(d.conversations).AnyTimes()
	d.repo.EXPECT().Message().Return(d.messages).AnyTimes()
	d.repo.EXPECT().Connection().Return(d.connections).AnyTimes()
	d.repo.EXPECT().Protocol().Return(d.protocols).AnyTimes()
	d.repo.EXPECT().User().Return(d.users).AnyTimes()
	d.repo.EXPECT().Tag().Return(d.tags).AnyTimes()
	d.repo.EXPECT().Template().Return(d.templates).AnyTimes()
	d.repo.EXPECT().Rule().Return(d.rules).AnyTimes()

	// The transaction runs against the same mocks.
	d.repo.EXPECT().WithTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(tx repository.Repository) error) error {
			return fn(d.repo)
		}).AnyTimes()

	d.notifier = service.NewNotifier(d.realtime, d.events, "test", d.logger)
	return d
}

// quietPublishers accepts any notification not expected more specifically beforehand.
func (d *deps) quietPublishers() {
	d.realtime.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	d.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)
}

func asAdmin(companyID uuid.UUID) context.Context {
	return tenant.WithIdentity(context.Background(), tenant.Identity{
		CompanyID: companyID,
		UserID:    uuid.New(),
		Role:      tenant.RoleAdmin,
	})
}

func asAgent(companyID, userID uuid.UUID) context.Context {
	return tenant.WithIdentity(context.Background(), tenant.Identity{
		CompanyID: companyID,
		UserID:    userID,
		Role:      tenant.RoleAgent,
	})
}

func activeConnection(companyID uuid.UUID, instance string) *models.Connection {
	return &models.Connection{
		ID:           uuid.New(),
		CompanyID:    companyID,
		Name:         instance,
		Provider:     models.ProviderEvolution,
		InstanceName: instance,
		Status:       models.ConnectionStatusConnected,
		IsActive:     true,
	}
}
