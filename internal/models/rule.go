package models

import (
	"strings"

	"github.com/google/uuid"
)

// Matches reports whether the rule applies to a first message received on connectionID.
func (r *AutoAssignRule) Matches(connectionID uuid.UUID, text string) bool {
	if !r.IsActive {
		return false
	}
	if r.ConnectionID != nil && *r.ConnectionID != connectionID {
		return false
	}
	if r.Keyword != nil && *r.Keyword != "" {
		return strings.Contains(strings.ToLower(text), strings.ToLower(*r.Keyword))
	}
	return true
}

// Render substitutes the client name and protocol number placeholders.
func (t *Template) Render(clientName, protocol string) string {
	return strings.NewReplacer(
		"{{name}}", clientName,
		"{{protocol}}", protocol,
	).Replace(t.Content)
}
