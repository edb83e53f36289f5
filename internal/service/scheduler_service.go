package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/scheduler"
)

type schedulerService struct {
	scheduler   *scheduler.Scheduler
	connections ConnectionService
	logger      *zap.Logger
}

// NewSchedulerService runs the connection status poll every scheduler.interval_minutes.
func NewSchedulerService(
	cfg *config.Config,
	connections ConnectionService,
	logger *zap.Logger,
) SchedulerService {
	interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute

	svc := &schedulerService{
		connections: connections,
		logger:      logger,
	}

	svc.scheduler = scheduler.NewScheduler(logger, "connection-status", interval, svc.checkConnections)
	return svc
}

func (s *schedulerService) Start() error {
	return s.scheduler.Start(context.Background())
}

func (s *schedulerService) Stop() error {
	return s.scheduler.Stop()
}

func (s *schedulerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}

func (s *schedulerService) checkConnections(ctx context.Context) error {
	return s.connections.CheckConnections(ctx)
}
