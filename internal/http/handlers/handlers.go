// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/genmedia-api/internal/http/mw"
	"github.com/jmylchreest/genmedia-api/internal/version"
)

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Short()
	return out, nil
}

// ProbeOutput is the body of the liveness and readiness probes.
type ProbeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez reports that the process is serving.
func Livez(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// ReadyzHandler reports readiness once the database answers.
type ReadyzHandler struct {
	db DBPinger
}

// NewReadyzHandler creates a readiness handler.
func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz checks the database connection.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			return nil, huma.Error503ServiceUnavailable("database unavailable")
		}
	}
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// getUserID extracts user ID from context.
func getUserID(ctx context.Context) string {
	claims := mw.GetUserClaims(ctx)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// requireUser returns the caller's ID or a 401.
func requireUser(ctx context.Context) (string, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return "", huma.Error401Unauthorized("unauthorized")
	}
	return userID, nil
}

// requireAdmin returns the caller's ID or a 403 for non-admins.
func requireAdmin(ctx context.Context) (string, error) {
	claims := mw.GetUserClaims(ctx)
	if claims == nil || !claims.Admin {
		return "", huma.Error403Forbidden("admin access required")
	}
	return claims.UserID, nil
}
