// Package auth holds the per-browser cookie store and the manager-role
// tokens issued after a successful manager secret check.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing manager claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// RoleManager is the only role a token can carry.
const RoleManager = "manager"

// Claims are the claims of a manager-role token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IsManager reports whether the claims grant the manager role.
func (c *Claims) IsManager() bool {
	return c != nil && c.Role == RoleManager
}

// GetClaims retrieves the claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// IsManagerContext reports whether the request context carries manager claims.
func IsManagerContext(ctx context.Context) bool {
	claims, ok := GetClaims(ctx)
	return ok && claims.IsManager()
}
