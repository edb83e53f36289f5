package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/wa-inbox/internal/tenant"
)

// User is a staff member of a company.
type User struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	CompanyID uuid.UUID   `db:"company_id" json:"companyId"`
	Name      string      `db:"name" json:"name"`
	Email     string      `db:"email" json:"email"`
	Role      tenant.Role `db:"role" json:"role"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// Template is a canned reply. Content may reference {{name}} and {{protocol}}.
type Template struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CompanyID uuid.UUID `db:"company_id" json:"companyId"`
	Name      string    `db:"name" json:"name"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// AutoAssignRule routes newly created conversations. Nil matchers match anything.
type AutoAssignRule struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	CompanyID     uuid.UUID  `db:"company_id" json:"companyId"`
	Name          string     `db:"name" json:"name"`
	ConnectionID  *uuid.UUID `db:"connection_id" json:"connectionId,omitempty"`
	Keyword       *string    `db:"keyword" json:"keyword,omitempty"`
	QueueID       *uuid.UUID `db:"queue_id" json:"queueId,omitempty"`
	AgentID       *uuid.UUID `db:"agent_id" json:"agentId,omitempty"`
	PriorityOrder int        `db:"priority_order" json:"priorityOrder"`
	IsActive      bool       `db:"is_active" json:"isActive"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}
