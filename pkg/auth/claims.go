// Package auth authenticates API callers with HS256 bearer tokens. The token
// subject is the actor recorded on every compound change and prediction.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

// Claims represents the access token claims.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.).
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Actor is the identity written to created_by, updated_by and changed_by.
func (c *Claims) Actor() string {
	return c.Subject
}

// WithClaims returns a context carrying the authenticated caller's claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok && claims != nil
}

// ActorFromContext returns the authenticated actor, or "" outside an
// authenticated request.
func ActorFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Actor()
	}
	return ""
}
