package auth

import (
	"context"
	"strings"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleDealer = "dealer"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

// AccountStatusActive marks accounts allowed to submit listings.
const AccountStatusActive = "active"

// Identity captures the authenticated principal details extracted from a token.
type Identity struct {
	UID           string
	Email         string
	Name          string
	Role          string
	AccountStatus string
}

// HasRole reports whether the identity carries the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.ToLower(strings.TrimSpace(role))
	return role != "" && strings.EqualFold(i.Role, role)
}

// HasAnyRole reports whether the identity carries any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// Active reports whether the account may submit new listings.
func (i *Identity) Active() bool {
	return i != nil && strings.EqualFold(i.AccountStatus, AccountStatusActive)
}

type contextKey string

const identityContextKey contextKey = "github.com/autexline/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
