package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/repository"
)

// CreatePostInput describes a scheduled post and the media to generate for it.
type CreatePostInput struct {
	Caption     string
	Platforms   []string
	ScheduledAt *time.Time
	AutoPublish bool
	Media       []GenerateInput
}

// PostService manages scheduled posts.
type PostService struct {
	posts      repository.PostRepository
	jobs       repository.JobRepository
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewPostService creates a new post service.
func NewPostService(posts repository.PostRepository, jobs repository.JobRepository, dispatcher *Dispatcher, logger *slog.Logger) *PostService {
	return &PostService{
		posts:      posts,
		jobs:       jobs,
		dispatcher: dispatcher,
		logger:     logger.With("component", "posts"),
	}
}

// Create stores the post and enqueues its media jobs. When the enqueue is
// rejected, or none of its jobs could be stored, the post remains as a failed
// draft and the error is returned.
func (s *PostService) Create(ctx context.Context, userID string, in CreatePostInput) (*models.ScheduledPost, *EnqueueResult, error) {
	if len(in.Media) == 0 {
		return nil, nil, ErrEmptyPost
	}

	post := &models.ScheduledPost{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Caption:     in.Caption,
		Platforms:   in.Platforms,
		ScheduledAt: in.ScheduledAt,
		AutoPublish: in.AutoPublish,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, nil, fmt.Errorf("failed to create post: %w", err)
	}

	result, err := s.dispatcher.Enqueue(ctx, post.ID, userID, in.Media)
	if err != nil {
		if _, uerr := s.posts.UpdateMedia(ctx, post.ID, models.MediaStatusFailed, nil, 0); uerr != nil {
			s.logger.Warn("failed to mark post failed", "post_id", post.ID, "error", uerr)
		}
		return nil, nil, err
	}

	s.logger.Info("post created", "post_id", post.ID, "user_id", userID, "jobs", result.JobCount, "credits", result.TotalCreditsUsed)
	stored, err := s.posts.GetByID(ctx, post.ID)
	if err != nil || stored == nil {
		return post, result, nil
	}
	return stored, result, nil
}

// Get returns an owned post and its jobs.
func (s *PostService) Get(ctx context.Context, userID, postID string) (*models.ScheduledPost, []*models.GenerationJob, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil || post.UserID != userID {
		return nil, nil, ErrPostNotFound
	}
	jobs, err := s.jobs.ListByPost(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list post jobs: %w", err)
	}
	return post, jobs, nil
}

// List returns the user's posts, newest first.
func (s *PostService) List(ctx context.Context, userID string, limit, offset int) ([]*models.ScheduledPost, error) {
	return s.posts.ListByUser(ctx, userID, limit, offset)
}
