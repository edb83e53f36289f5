package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

type connectionService struct {
	repo    repository.Repository
	gateway gateway.Client
	notify  *Notifier
	logger  *zap.Logger
}

func NewConnectionService(
	repo repository.Repository,
	gw gateway.Client,
	notify *Notifier,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:    repo,
		gateway: gw,
		notify:  notify,
		logger:  logger,
	}
}

// CheckConnections polls every active connection. One failing gateway does not stop the others.
func (s *connectionService) CheckConnections(ctx context.Context) error {
	conns, err := s.repo.Connection().ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active connections: %w", err)
	}

	var errs []error
	for _, conn := range conns {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		// Legacy webhooks have no status endpoint.
		if conn.Provider == models.ProviderLegacy {
			continue
		}
		if err := s.check(ctx, conn); err != nil {
			s.logger.Warn("Connection check failed",
				zap.String("connection_id", conn.ID.String()),
				zap.String("instance", conn.InstanceName),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("connection %s: %w", conn.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *connectionService) check(ctx context.Context, conn *models.Connection) error {
	state, err := s.gateway.ConnectionState(ctx, conn)
	if err != nil {
		return err
	}
	if state == conn.Status {
		return nil
	}

	scoped := tenant.WithCompany(ctx, conn.CompanyID)
	if err := s.repo.Connection().UpdateStatus(scoped, conn.ID, state); err != nil {
		return err
	}

	s.logger.Info("Connection status changed",
		zap.String("connection_id", conn.ID.String()),
		zap.String("from", string(conn.Status)),
		zap.String("to", string(state)))

	conn.Status = state
	s.notify.connectionUpdated(scoped, conn)
	return nil
}
