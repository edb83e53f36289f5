package models

import (
	"time"

	"github.com/google/uuid"
)

type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

type Provider string

const (
	ProviderEvolution Provider = "evolution"
	ProviderWhapi     Provider = "whapi"
	ProviderLegacy    Provider = "legacy"
)

// Connection is a WhatsApp number linked through a gateway provider.
type Connection struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	CompanyID    uuid.UUID        `db:"company_id" json:"companyId"`
	Name         string           `db:"name" json:"name"`
	Provider     Provider         `db:"provider" json:"provider"`
	InstanceName string           `db:"instance_name" json:"instanceName"`
	Token        string           `db:"token" json:"-"`
	PhoneNumber  *string          `db:"phone_number" json:"phoneNumber,omitempty"`
	Status       ConnectionStatus `db:"status" json:"status"`
	IsActive     bool             `db:"is_active" json:"isActive"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updatedAt"`
}
