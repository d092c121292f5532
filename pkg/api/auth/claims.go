// Package auth reads operator-console JWT claims for the control plane API.
//
// Per this system's scope, tokens are issued by an external identity
// provider and only consumed here: there is no login or token-minting flow,
// only claim validation and extraction of the acting user.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried on an operator bearer token.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the unique identifier (UUID) for the acting user.
	UserID string `json:"uid"`

	// Username is the human-readable username, used for audit attribution.
	Username string `json:"username"`

	// Role is the user's role ("admin", "operator", or "viewer").
	Role string `json:"role"`
}

// IsAdmin returns true if the user has admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// CanWrite returns true if the role permits mutating operations.
func (c *Claims) CanWrite() bool {
	return c.Role == "admin" || c.Role == "operator"
}

var ErrMissingBearerToken = errors.New("missing bearer token")

// ParseBearerToken validates the signature and expiry of the bearer token
// in an Authorization header and returns its Claims.
func ParseBearerToken(r *http.Request, secret []byte) (*Claims, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrMissingBearerToken
	}
	raw := strings.TrimPrefix(header, prefix)

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

type contextKey string

const actorContextKey contextKey = "ggnet-actor"

// WithActor returns a context carrying the acting Claims, used by handlers
// to attribute CreatedByID/audit fields without re-parsing the token.
func WithActor(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, actorContextKey, claims)
}

// ActorFromContext returns the Claims stored by WithActor, if any.
func ActorFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(actorContextKey).(*Claims)
	return claims, ok
}
