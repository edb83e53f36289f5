// Package tenant carries the company and caller identity through request contexts.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

const (
	companyKey  contextKey = "companyID"
	identityKey contextKey = "identity"
)

// ErrMissingTenant is returned by every tenant-scoped operation invoked without a company in context.
var ErrMissingTenant = errors.New("tenant: company id missing from context")

// Role is the caller's role inside a company.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleAgent      Role = "agent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleAgent:
		return true
	}
	return false
}

// Identity is the authenticated caller as asserted by the upstream gateway.
type Identity struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
	Role      Role
}

// IsAgent reports whether the caller is limited to its own tickets.
func (i Identity) IsAgent() bool {
	return i.Role == RoleAgent
}

// WithCompany returns a context scoped to the given company.
func WithCompany(ctx context.Context, companyID uuid.UUID) context.Context {
	return context.WithValue(ctx, companyKey, companyID)
}

// WithIdentity stores the caller identity and scopes the context to its company.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	return WithCompany(ctx, id.CompanyID)
}

// CompanyID returns the company the context is scoped to.
func CompanyID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(companyKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrMissingTenant
	}
	return id, nil
}

// IdentityFrom returns the caller identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.CompanyID == uuid.Nil {
		return Identity{}, false
	}
	return id, true
}
