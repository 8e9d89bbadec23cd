package mw

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// HumaAuthConfig holds dependencies for the Huma auth middleware.
type HumaAuthConfig struct {
	Verifier TokenVerifier
	Users    UserProvisioner // Optional; provisions the credit account on first sight
	Logger   *slog.Logger
}

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// OperationMetadataKey is the key for storing additional operation requirements.
type OperationMetadataKey string

const (
	// MetaKeyRequireAdmin is the metadata key for the admin requirement.
	MetaKeyRequireAdmin OperationMetadataKey = "requireAdmin"
	// MetaKeyRateLimited marks operations subject to the per-user rate limit.
	MetaKeyRateLimited OperationMetadataKey = "rateLimited"
)

// HumaAuth returns a Huma middleware that authenticates operations declaring
// bearerAuth security. Other operations pass through untouched.
func HumaAuth(api huma.API, cfg HumaAuthConfig) func(ctx huma.Context, next func(huma.Context)) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, err := validateToken(cfg.Verifier, bearerToken(authHeader))
		if err != nil {
			logger.Debug("auth validation failed", "error", err)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		if metaFlag(op, MetaKeyRequireAdmin) && !claims.Admin {
			huma.WriteErr(api, ctx, http.StatusForbidden, "admin access required")
			return
		}

		stdCtx := ctx.Context()
		if cfg.Users != nil {
			if err := cfg.Users.EnsureUser(stdCtx, claims.UserID); err != nil {
				logger.Error("failed to provision user", "user_id", claims.UserID, "error", err)
				huma.WriteErr(api, ctx, http.StatusInternalServerError, "failed to load account")
				return
			}
		}

		next(huma.WithContext(ctx, WithUserClaims(stdCtx, claims)))
	}
}

// operationRequiresAuth checks if the operation has bearerAuth in its security requirements.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}

// metaFlag reads a boolean flag from operation metadata.
func metaFlag(op *huma.Operation, key OperationMetadataKey) bool {
	if op.Metadata == nil {
		return false
	}
	b, _ := op.Metadata[string(key)].(bool)
	return b
}
