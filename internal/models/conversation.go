package models

import (
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	ConversationStatusWaiting    ConversationStatus = "waiting"
	ConversationStatusInProgress ConversationStatus = "in_progress"
	ConversationStatusCompleted  ConversationStatus = "completed"
	ConversationStatusClosed     ConversationStatus = "closed"
)

// Valid reports whether s is a known conversation status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusWaiting, ConversationStatusInProgress, ConversationStatusCompleted, ConversationStatusClosed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Conversation is a ticket: one support thread between a client and the company.
// A finished conversation is never reopened.
type Conversation struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	CompanyID       uuid.UUID          `db:"company_id" json:"companyId"`
	ClientID        uuid.UUID          `db:"client_id" json:"clientId"`
	ConnectionID    *uuid.UUID         `db:"connection_id" json:"connectionId,omitempty"`
	QueueID         *uuid.UUID         `db:"queue_id" json:"queueId,omitempty"`
	AssignedAgentID *uuid.UUID         `db:"assigned_agent_id" json:"assignedAgentId"`
	Status          ConversationStatus `db:"status" json:"status"`
	Priority        Priority           `db:"priority" json:"priority"`
	ProtocolNumber  string             `db:"protocol_number" json:"protocolNumber"`
	LastMessage     *string            `db:"last_message" json:"lastMessage,omitempty"`
	LastMessageAt   *time.Time         `db:"last_message_at" json:"lastMessageAt,omitempty"`
	UnreadCount     int                `db:"unread_count" json:"unreadCount"`
	Finished        bool               `db:"finished" json:"finished"`
	FinishedAt      *time.Time         `db:"finished_at" json:"finishedAt,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updatedAt"`
}

// AssignedTo reports whether the conversation is assigned to the given user.
func (c *Conversation) AssignedTo(userID uuid.UUID) bool {
	return c.AssignedAgentID != nil && *c.AssignedAgentID == userID
}

// Ticket is a conversation row as shown in the inbox list.
type Ticket struct {
	Conversation
	ClientName  string `db:"client_name" json:"clientName"`
	ClientPhone string `db:"client_phone" json:"clientPhone"`
	Tags        []Tag  `db:"-" json:"tags"`
}

// ConversationFilter narrows a ticket listing. Zero values mean "no filter".
type ConversationFilter struct {
	Status         *ConversationStatus
	AssignedTo     *uuid.UUID
	ClientID       *uuid.UUID
	QueueID        *uuid.UUID
	ProtocolNumber string
	DateFrom       *time.Time
	DateTo         *time.Time
	Page           int
	Limit          int
}

// Offset returns the row offset for the filter's page.
func (f ConversationFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// StatusCounts holds ticket counts per status.
type StatusCounts struct {
	All        int64
	Waiting    int64
	InProgress int64
	Completed  int64
	Closed     int64
}
