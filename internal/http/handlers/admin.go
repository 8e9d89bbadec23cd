package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/service"
	"github.com/jmylchreest/genmedia-api/internal/worker"
)

// CredentialManager administers provider credentials.
type CredentialManager interface {
	List(ctx context.Context) ([]*models.APICredential, error)
	Register(ctx context.Context, provider, name, secret string) (bool, error)
	SetActive(ctx context.Context, id string, active bool) (*models.APICredential, error)
}

// CreditGranter adds credits to an account.
type CreditGranter interface {
	Grant(ctx context.Context, userID string, amount int, reference, description string) (int, error)
}

// QueueStatter reports dispatch queue counters.
type QueueStatter interface {
	Stats() worker.Stats
}

// AdminHandler handles admin endpoints.
type AdminHandler struct {
	credentials CredentialManager
	credits     CreditGranter
	queue       QueueStatter
	logger      *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(credentials CredentialManager, credits CreditGranter, queue QueueStatter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		credentials: credentials,
		credits:     credits,
		queue:       queue,
		logger:      logger.With("component", "admin-handler"),
	}
}

// CredentialResponse represents a provider credential in API responses.
type CredentialResponse struct {
	ID         string `json:"id"`
	Provider   string `json:"provider"`
	Name       string `json:"name"`
	IsActive   bool   `json:"is_active"`
	UsageCount int64  `json:"usage_count"`
	LastUsedAt string `json:"last_used_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toCredentialResponse(c *models.APICredential) CredentialResponse {
	resp := CredentialResponse{
		ID:         c.ID,
		Provider:   c.Provider,
		Name:       c.Name,
		IsActive:   c.IsActive,
		UsageCount: c.UsageCount,
		CreatedAt:  c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if c.LastUsedAt != nil {
		resp.LastUsedAt = c.LastUsedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// ListCredentialsOutput represents the list credentials response.
type ListCredentialsOutput struct {
	Body struct {
		Credentials []CredentialResponse `json:"credentials"`
	}
}

// ListCredentials returns all provider credentials. Secrets are never exposed.
func (h *AdminHandler) ListCredentials(ctx context.Context, input *struct{}) (*ListCredentialsOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	creds, err := h.credentials.List(ctx)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}

	out := &ListCredentialsOutput{}
	out.Body.Credentials = make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		out.Body.Credentials = append(out.Body.Credentials, toCredentialResponse(c))
	}
	return out, nil
}

// RegisterCredentialInput represents the register credential request.
type RegisterCredentialInput struct {
	Body struct {
		Provider string `json:"provider" enum:"taskapi,prediction" doc:"Provider the credential authenticates against"`
		Name     string `json:"name" minLength:"1" maxLength:"100" doc:"Operator label, unique per provider"`
		Secret   string `json:"secret" minLength:"1" doc:"Provider API key; stored encrypted"`
	}
}

// RegisterCredentialOutput represents the register credential response.
type RegisterCredentialOutput struct {
	Body struct {
		Created bool `json:"created" doc:"False when the credential already existed"`
	}
}

// RegisterCredential adds a credential to the rotation.
func (h *AdminHandler) RegisterCredential(ctx context.Context, input *RegisterCredentialInput) (*RegisterCredentialOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	created, err := h.credentials.Register(ctx, input.Body.Provider, input.Body.Name, input.Body.Secret)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}
	out := &RegisterCredentialOutput{}
	out.Body.Created = created
	return out, nil
}

// SetCredentialActiveInput represents the toggle credential request.
type SetCredentialActiveInput struct {
	ID   string `path:"id" doc:"Credential ID"`
	Body struct {
		IsActive bool `json:"is_active" doc:"Whether the rotator may pick this credential"`
	}
}

// SetCredentialActiveOutput represents the toggle credential response.
type SetCredentialActiveOutput struct {
	Body CredentialResponse
}

// SetCredentialActive enables or disables a credential.
func (h *AdminHandler) SetCredentialActive(ctx context.Context, input *SetCredentialActiveInput) (*SetCredentialActiveOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	cred, err := h.credentials.SetActive(ctx, input.ID, input.Body.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, huma.Error404NotFound("credential not found")
	}
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}
	return &SetCredentialActiveOutput{Body: toCredentialResponse(cred)}, nil
}

// GrantCreditsInput represents an operator credit grant.
type GrantCreditsInput struct {
	Body struct {
		UserID      string `json:"user_id" minLength:"1" doc:"Account to credit"`
		Amount      int    `json:"amount" minimum:"1" doc:"Credits to add"`
		Reference   string `json:"reference" minLength:"1" doc:"Unique reference; a repeated reference is rejected"`
		Description string `json:"description,omitempty"`
	}
}

// GrantCreditsOutput represents the grant response.
type GrantCreditsOutput struct {
	Body struct {
		Balance int `json:"balance"`
	}
}

// GrantCredits adds credits to a user's balance.
func (h *AdminHandler) GrantCredits(ctx context.Context, input *GrantCreditsInput) (*GrantCreditsOutput, error) {
	adminID, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	desc := input.Body.Description
	if desc == "" {
		desc = "Admin grant"
	}
	balance, err := h.credits.Grant(ctx, input.Body.UserID, input.Body.Amount, input.Body.Reference, desc)
	if errors.Is(err, service.ErrDuplicateGrant) {
		return nil, huma.Error409Conflict("reference already used")
	}
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}

	h.logger.Info("admin credit grant",
		"admin_id", adminID,
		"user_id", input.Body.UserID,
		"amount", input.Body.Amount,
	)

	out := &GrantCreditsOutput{}
	out.Body.Balance = balance
	return out, nil
}

// QueueStatsOutput represents the dispatch queue counters.
type QueueStatsOutput struct {
	Body worker.Stats
}

// QueueStats returns a snapshot of the dispatch queue.
func (h *AdminHandler) QueueStats(ctx context.Context, input *struct{}) (*QueueStatsOutput, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return &QueueStatsOutput{Body: h.queue.Stats()}, nil
}
