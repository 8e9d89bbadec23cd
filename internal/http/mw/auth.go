// Package mw contains HTTP middleware for the genmedia API.
package mw

import (
	"context"
	"strings"

	"github.com/jmylchreest/genmedia-api/internal/auth"
	"github.com/jmylchreest/genmedia-api/internal/logging"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserClaimsKey is the context key for user claims.
	UserClaimsKey ContextKey = "user_claims"
)

// UserClaims identifies the caller of a protected endpoint.
type UserClaims struct {
	UserID string
	Email  string
	Admin  bool
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// UserProvisioner creates the credit account for a first-time caller.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, userID string) error
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(header)
}

// validateToken converts a verified token into UserClaims.
func validateToken(verifier TokenVerifier, token string) (*UserClaims, error) {
	if verifier == nil || token == "" {
		return nil, auth.ErrInvalidToken
	}
	claims, err := verifier.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return &UserClaims{
		UserID: claims.UserID(),
		Email:  claims.Email,
		Admin:  claims.IsAdmin(),
	}, nil
}

// WithUserClaims returns a copy of ctx carrying claims.
func WithUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	ctx = context.WithValue(ctx, UserClaimsKey, claims)
	return logging.WithUserID(ctx, claims.UserID)
}

// GetUserClaims retrieves user claims from context.
func GetUserClaims(ctx context.Context) *UserClaims {
	claims, ok := ctx.Value(UserClaimsKey).(*UserClaims)
	if !ok {
		return nil
	}
	return claims
}
