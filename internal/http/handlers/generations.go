package handlers

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

// JobQuerier reads and refreshes a user's jobs.
type JobQuerier interface {
	JobGetter
	List(ctx context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error)
	Refresh(ctx context.Context, userID, jobID string) (*models.GenerationJob, error)
}

// GenerationsHandler serves job status.
type GenerationsHandler struct {
	jobs   JobQuerier
	logger *slog.Logger
}

// NewGenerationsHandler creates a generations handler.
func NewGenerationsHandler(jobs JobQuerier, logger *slog.Logger) *GenerationsHandler {
	return &GenerationsHandler{jobs: jobs, logger: logger.With("component", "generations-handler")}
}

// GetGenerationInput identifies a job.
type GetGenerationInput struct {
	ID string `path:"id" doc:"Generation ID"`
}

// GetGenerationOutput is one job.
type GetGenerationOutput struct {
	Body GenerationResponse
}

// GetGeneration returns a job owned by the caller.
func (h *GenerationsHandler) GetGeneration(ctx context.Context, input *GetGenerationInput) (*GetGenerationOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	job, err := h.jobs.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}
	return &GetGenerationOutput{Body: toGenerationResponse(job)}, nil
}

// RefreshGeneration asks the provider for the job's status and applies a
// terminal answer before returning the job.
func (h *GenerationsHandler) RefreshGeneration(ctx context.Context, input *GetGenerationInput) (*GetGenerationOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	job, err := h.jobs.Refresh(ctx, userID, input.ID)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}
	return &GetGenerationOutput{Body: toGenerationResponse(job)}, nil
}

// ListGenerationsInput pages the caller's jobs.
type ListGenerationsInput struct {
	Limit  int `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Page size"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Items to skip"`
}

// ListGenerationsOutput is a page of jobs.
type ListGenerationsOutput struct {
	Body struct {
		Generations []GenerationResponse `json:"generations"`
		Limit       int                  `json:"limit"`
		Offset      int                  `json:"offset"`
	}
}

// ListGenerations returns the caller's jobs, newest first.
func (h *GenerationsHandler) ListGenerations(ctx context.Context, input *ListGenerationsInput) (*ListGenerationsOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := h.jobs.List(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}

	out := &ListGenerationsOutput{}
	out.Body.Generations = make([]GenerationResponse, 0, len(jobs))
	for _, job := range jobs {
		out.Body.Generations = append(out.Body.Generations, toGenerationResponse(job))
	}
	out.Body.Limit = input.Limit
	out.Body.Offset = input.Offset
	return out, nil
}
