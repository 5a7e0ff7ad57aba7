// Package identity carries the authenticated caller through request contexts.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Role is the caller's marketplace role as asserted by the identity service.
type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// ParseRole normalizes a token role claim. "user" is the legacy name for clients.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "client", "user":
		return RoleClient, true
	case "professional":
		return RoleProfessional, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Principal is the authenticated caller. Professionals are addressed by the
// same id they authenticate with.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

func (p Principal) Is(role Role) bool {
	return p.ID != uuid.Nil && p.Role == role
}

type ctxKey string

const principalKey ctxKey = "booking.principal"

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the principal if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.ID != uuid.Nil
}
