package service

import (
	"github.com/google/uuid"

	"github.com/popeskul/wa-inbox/internal/models"
)

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"

	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusRunning      = "running"
	StatusStopped      = "stopped"
)

type HealthStatus struct {
	Status               string `json:"status"`
	SchedulerStatus      string `json:"scheduler_status"`
	DatabaseStatus       string `json:"database_status"`
	RedisStatus          string `json:"redis_status"`
	CircuitBreakerStatus string `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  string `json:"circuit_breaker_state,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type TicketList struct {
	Tickets    []*models.Ticket `json:"tickets"`
	Pagination Pagination       `json:"pagination"`
}

// TicketStats uses the inbox UI's names: open is waiting, closed is completed and canceled is
// the closed status.
type TicketStats struct {
	All        int64 `json:"all"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"in_progress"`
	Closed     int64 `json:"closed"`
	Canceled   int64 `json:"canceled"`
}

type ConversationMessages struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []*models.Message    `json:"messages"`
}

// SendMessageInput is an outbound reply: free text or a template rendered for the client.
type SendMessageInput struct {
	Text       string
	TemplateID *uuid.UUID
}
