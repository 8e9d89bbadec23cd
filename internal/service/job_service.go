package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/repository"
)

// JobService serves job reads scoped to their owner.
type JobService struct {
	jobs       repository.JobRepository
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewJobService creates a new job service.
func NewJobService(jobs repository.JobRepository, reconciler *Reconciler, logger *slog.Logger) *JobService {
	return &JobService{
		jobs:       jobs,
		reconciler: reconciler,
		logger:     logger.With("component", "jobs"),
	}
}

// Get returns the job if userID owns it. Other users' jobs are reported as not
// found so their existence is not revealed.
func (s *JobService) Get(ctx context.Context, userID, jobID string) (*models.GenerationJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil || job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// List returns the user's jobs, newest first.
func (s *JobService) List(ctx context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error) {
	return s.jobs.ListByUser(ctx, userID, limit, offset)
}

// Refresh polls the provider for an owned job and returns its latest state.
func (s *JobService) Refresh(ctx context.Context, userID, jobID string) (*models.GenerationJob, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Refresh(ctx, job)
}
