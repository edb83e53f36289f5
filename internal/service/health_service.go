package service

import (
	"context"
	"fmt"
	"time"

	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/repository"
)

const healthCheckTimeout = 2 * time.Second

type healthService struct {
	repo             repository.Repository
	idempotency      IdempotencyStore
	schedulerService SchedulerService
	breaker          BreakerStatus
}

func NewHealthService(
	repo repository.Repository,
	idempotency IdempotencyStore,
	schedulerService SchedulerService,
	breaker BreakerStatus,
) HealthService {
	return &healthService{
		repo:             repo,
		idempotency:      idempotency,
		schedulerService: schedulerService,
		breaker:          breaker,
	}
}

// GetHealth is unhealthy when PostgreSQL or Redis is unreachable and degraded while the
// gateway circuit breaker is open.
func (s *healthService) GetHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:          HealthHealthy,
		SchedulerStatus: StatusStopped,
	}

	if s.schedulerService != nil && s.schedulerService.IsRunning() {
		status.SchedulerStatus = StatusRunning
	}

	status.DatabaseStatus = s.checkDatabase()
	status.RedisStatus = s.checkRedis(ctx)

	if s.breaker != nil {
		state := s.breaker.GetState()
		requests, failures := s.breaker.GetCounts()
		status.CircuitBreakerState = state
		if requests > 0 {
			failureRate := float64(failures) / float64(requests) * 100
			status.CircuitBreakerStatus = fmt.Sprintf("Requests: %d, Failures: %d (%.1f%%)", requests, failures, failureRate)
		} else {
			status.CircuitBreakerStatus = "No requests yet"
		}
		if state == gateway.StateOpen {
			status.Status = HealthDegraded
		}
	}

	if status.DatabaseStatus != StatusConnected || status.RedisStatus != StatusConnected {
		status.Status = HealthUnhealthy
	}

	return status
}

func (s *healthService) checkDatabase() string {
	if err := s.repo.Ping(); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

func (s *healthService) checkRedis(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := s.idempotency.Ping(ctx); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}
