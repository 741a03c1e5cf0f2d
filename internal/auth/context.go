// ABOUTME: Authentication context for tracking a logged-in principal through handlers
// ABOUTME: Provides WithAuth/FromContext for propagating session info via context

package auth

import (
	"context"
	"time"
)

// AuthContext holds the identity carried by a verified session token.
type AuthContext struct {
	PrincipalID string
	SessionID   string // ID of the challenge whose login minted the token
	ExpiresAt   time.Time
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	auth, ok := val.(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// MustFromContext retrieves the AuthContext from the context, panicking if not present.
func MustFromContext(ctx context.Context) *AuthContext {
	auth := FromContext(ctx)
	if auth == nil {
		panic("auth: AuthContext not found in context")
	}
	return auth
}
