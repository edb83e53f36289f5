package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/events"
	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/realtime"
	"github.com/popeskul/wa-inbox/internal/repository"
)

type Service struct {
	Ingestion  IngestionService
	Tickets    TicketService
	Protocol   ProtocolService
	Connection ConnectionService
	Scheduler  SchedulerService
	Health     HealthService
}

// Dependencies are the infrastructure adapters the services run on.
type Dependencies struct {
	Config      *config.Config
	Repo        repository.Repository
	Idempotency IdempotencyStore
	Gateway     gateway.Client
	Breaker     BreakerStatus
	Realtime    realtime.Publisher
	Events      events.Publisher
	Logger      *zap.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	notify := NewNotifier(deps.Realtime, deps.Events, cfg.Events.Producer, deps.Logger)

	protocolService := NewProtocolService(time.Now)
	ingestionService := NewIngestionService(
		deps.Repo,
		deps.Idempotency,
		protocolService,
		notify,
		time.Duration(cfg.Webhook.ProcessTimeout)*time.Second,
		deps.Logger,
	)
	ticketService := NewTicketService(deps.Repo, protocolService, deps.Gateway, notify, deps.Logger)
	connectionService := NewConnectionService(deps.Repo, deps.Gateway, notify, deps.Logger)
	schedulerService := NewSchedulerService(cfg, connectionService, deps.Logger)
	healthService := NewHealthService(deps.Repo, deps.Idempotency, schedulerService, deps.Breaker)

	return &Service{
		Ingestion:  ingestionService,
		Tickets:    ticketService,
		Protocol:   protocolService,
		Connection: connectionService,
		Scheduler:  schedulerService,
		Health:     healthService,
	}
}
