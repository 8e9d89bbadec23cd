package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/service"
)

// Generator creates and dispatches generation jobs.
type Generator interface {
	CreateAndDispatch(ctx context.Context, userID string, in service.GenerateInput) (*service.GenerateResult, error)
}

// IdempotencyGuard deduplicates retried generate requests.
type IdempotencyGuard interface {
	Begin(ctx context.Context, userID, key string) (string, error)
	Complete(ctx context.Context, userID, key, jobID string) error
	Abort(ctx context.Context, userID, key string) error
}

// JobGetter loads a job owned by a user.
type JobGetter interface {
	Get(ctx context.Context, userID, jobID string) (*models.GenerationJob, error)
}

// BalanceReader reads a user's credit balance.
type BalanceReader interface {
	Balance(ctx context.Context, userID string) (int, error)
}

// GenerateHandler handles generation requests.
type GenerateHandler struct {
	generator Generator
	idem      IdempotencyGuard // Optional
	jobs      JobGetter
	balances  BalanceReader
	logger    *slog.Logger
}

// NewGenerateHandler creates a generate handler. idem may be nil.
func NewGenerateHandler(generator Generator, idem IdempotencyGuard, jobs JobGetter, balances BalanceReader, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		idem:      idem,
		jobs:      jobs,
		balances:  balances,
		logger:    logger.With("component", "generate-handler"),
	}
}

// GenerateInput is a generation request.
type GenerateInput struct {
	Kind           string `path:"kind" enum:"video,image,music,audio,speech,sound_effect" doc:"Media kind to generate"`
	IdempotencyKey string `header:"Idempotency-Key" maxLength:"255" doc:"Replays of the same key return the original job"`
	Body           struct {
		Model           string         `json:"model" minLength:"1" doc:"Model name from GET /api/v1/models"`
		Prompt          string         `json:"prompt,omitempty" doc:"Text prompt"`
		ReferenceInputs []string       `json:"reference_inputs,omitempty" doc:"Reference media URLs"`
		Parameters      map[string]any `json:"parameters,omitempty" doc:"Model-specific parameters"`
	}
}

// GenerateOutput is the accepted-job response.
type GenerateOutput struct {
	Body struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		CreditsCost      int    `json:"credits_cost"`
		CreditsRemaining int    `json:"credits_remaining"`
		Replayed         bool   `json:"replayed,omitempty"`
	}
}

// Generate reserves credits, persists a pending job and queues its dispatch.
func (h *GenerateHandler) Generate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" && h.idem != nil {
		existing, err := h.idem.Begin(ctx, userID, key)
		if err != nil {
			return nil, toHTTPError(err, h.logger)
		}
		if existing != "" {
			return h.replay(ctx, userID, existing)
		}
	}

	res, err := h.generator.CreateAndDispatch(ctx, userID, service.GenerateInput{
		Kind:            models.JobKind(input.Kind),
		Model:           input.Body.Model,
		Prompt:          input.Body.Prompt,
		ReferenceInputs: input.Body.ReferenceInputs,
		Parameters:      input.Body.Parameters,
	})
	if err != nil {
		if key != "" && h.idem != nil {
			if abortErr := h.idem.Abort(context.WithoutCancel(ctx), userID, key); abortErr != nil {
				h.logger.Warn("failed to release idempotency key", "user_id", userID, "error", abortErr)
			}
		}
		return nil, toHTTPError(err, h.logger)
	}

	if key != "" && h.idem != nil {
		if err := h.idem.Complete(ctx, userID, key, res.Job.ID); err != nil {
			h.logger.Warn("failed to record idempotency key", "user_id", userID, "job_id", res.Job.ID, "error", err)
		}
	}

	out := &GenerateOutput{}
	out.Body.ID = res.Job.ID
	out.Body.Status = string(models.JobStatusPending)
	out.Body.CreditsCost = res.Job.CreditsReserved
	out.Body.CreditsRemaining = res.Remaining
	return out, nil
}

// replay answers a repeated idempotency key with the job it created.
func (h *GenerateHandler) replay(ctx context.Context, userID, jobID string) (*GenerateOutput, error) {
	job, err := h.jobs.Get(ctx, userID, jobID)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}
	balance, err := h.balances.Balance(ctx, userID)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}

	out := &GenerateOutput{}
	out.Body.ID = job.ID
	out.Body.Status = string(job.Status)
	out.Body.CreditsCost = job.CreditsReserved
	out.Body.CreditsRemaining = balance
	out.Body.Replayed = true
	return out, nil
}

// GenerationResponse is the public view of a job.
type GenerationResponse struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Model        string     `json:"model"`
	Status       string     `json:"status"`
	ResultURL    string     `json:"result_url,omitempty"`
	ResultURLs   []string   `json:"result_urls,omitempty"`
	CreditsCost  int        `json:"credits_cost"`
	PostID       string     `json:"post_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func toGenerationResponse(job *models.GenerationJob) GenerationResponse {
	return GenerationResponse{
		ID:           job.ID,
		Kind:         string(job.Kind),
		Model:        job.Model,
		Status:       string(job.Status),
		ResultURL:    job.ResultURL(),
		ResultURLs:   job.ResultURLs,
		CreditsCost:  job.CreditsReserved,
		PostID:       job.PostID,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
		ErrorMessage: job.ErrorMessage,
	}
}
