package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/service"
)

// PostManager creates and reads scheduled posts.
type PostManager interface {
	Create(ctx context.Context, userID string, in service.CreatePostInput) (*models.ScheduledPost, *service.EnqueueResult, error)
	Get(ctx context.Context, userID, postID string) (*models.ScheduledPost, []*models.GenerationJob, error)
}

// PostsHandler serves scheduled posts.
type PostsHandler struct {
	posts  PostManager
	logger *slog.Logger
}

// NewPostsHandler creates a posts handler.
func NewPostsHandler(posts PostManager, logger *slog.Logger) *PostsHandler {
	return &PostsHandler{posts: posts, logger: logger.With("component", "posts-handler")}
}

// MediaSpec is one media item to generate for a post.
type MediaSpec struct {
	Kind            string         `json:"kind" enum:"video,image,music,audio,speech,sound_effect"`
	Model           string         `json:"model" minLength:"1"`
	Prompt          string         `json:"prompt,omitempty"`
	ReferenceInputs []string       `json:"reference_inputs,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}

// CreatePostInput is a post with the media it waits on.
type CreatePostInput struct {
	Body struct {
		Caption     string      `json:"caption" maxLength:"5000"`
		Platforms   []string    `json:"platforms,omitempty" doc:"Target social platforms"`
		ScheduledAt *time.Time  `json:"scheduled_at,omitempty" doc:"When the post should go out"`
		AutoPublish bool        `json:"auto_publish,omitempty" doc:"Publish as soon as media is ready"`
		Media       []MediaSpec `json:"media" minItems:"1" maxItems:"10"`
	}
}

// PostResponse is the public view of a post.
type PostResponse struct {
	ID             string               `json:"id"`
	Caption        string               `json:"caption"`
	Platforms      []string             `json:"platforms"`
	ScheduledAt    *time.Time           `json:"scheduled_at,omitempty"`
	MediaStatus    string               `json:"media_status"`
	MediaURLs      []string             `json:"media_urls,omitempty"`
	AutoPublish    bool                 `json:"auto_publish"`
	PublishStatus  string               `json:"publish_status,omitempty"`
	ExternalPostID string               `json:"external_post_id,omitempty"`
	PublishError   string               `json:"publish_error,omitempty"`
	Jobs           []GenerationResponse `json:"jobs,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func toPostResponse(post *models.ScheduledPost, jobs []*models.GenerationJob) PostResponse {
	resp := PostResponse{
		ID:             post.ID,
		Caption:        post.Caption,
		Platforms:      post.Platforms,
		ScheduledAt:    post.ScheduledAt,
		MediaStatus:    string(post.MediaStatus),
		MediaURLs:      post.MediaURLs,
		AutoPublish:    post.AutoPublish,
		PublishStatus:  string(post.PublishStatus),
		ExternalPostID: post.ExternalPostID,
		PublishError:   post.PublishError,
		CreatedAt:      post.CreatedAt,
	}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, toGenerationResponse(job))
	}
	return resp
}

// CreatePostOutput is the created post and the enqueue summary.
type CreatePostOutput struct {
	Body struct {
		Post             PostResponse `json:"post"`
		TotalCreditsUsed int          `json:"total_credits_used"`
		JobCount         int          `json:"job_count"`
	}
}

// CreatePost stores a post and enqueues its media against one reservation.
func (h *PostsHandler) CreatePost(ctx context.Context, input *CreatePostInput) (*CreatePostOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	specs := make([]service.GenerateInput, 0, len(input.Body.Media))
	for _, m := range input.Body.Media {
		specs = append(specs, service.GenerateInput{
			Kind:            models.JobKind(m.Kind),
			Model:           m.Model,
			Prompt:          m.Prompt,
			ReferenceInputs: m.ReferenceInputs,
			Parameters:      m.Parameters,
		})
	}

	post, result, err := h.posts.Create(ctx, userID, service.CreatePostInput{
		Caption:     input.Body.Caption,
		Platforms:   input.Body.Platforms,
		ScheduledAt: input.Body.ScheduledAt,
		AutoPublish: input.Body.AutoPublish,
		Media:       specs,
	})
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}

	out := &CreatePostOutput{}
	out.Body.Post = toPostResponse(post, result.Jobs)
	out.Body.TotalCreditsUsed = result.TotalCreditsUsed
	out.Body.JobCount = result.JobCount
	return out, nil
}

// GetPostInput identifies a post.
type GetPostInput struct {
	ID string `path:"id" doc:"Post ID"`
}

// GetPostOutput is one post with its jobs.
type GetPostOutput struct {
	Body PostResponse
}

// GetPost returns a post owned by the caller.
func (h *PostsHandler) GetPost(ctx context.Context, input *GetPostInput) (*GetPostOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	post, jobs, err := h.posts.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}
	return &GetPostOutput{Body: toPostResponse(post, jobs)}, nil
}
