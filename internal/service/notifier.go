package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/provider"
	"github.com/jmylchreest/genmedia-api/internal/repository"
)

// AggregateStatus derives a post's media status from its jobs:
// generating while any job is non-terminal, otherwise completed, failed or
// partial by how many succeeded. A post with no jobs is still generating.
func AggregateStatus(jobs []*models.GenerationJob) models.MediaStatus {
	if len(jobs) == 0 {
		return models.MediaStatusGenerating
	}
	var completed, failed int
	for _, j := range jobs {
		switch j.Status {
		case models.JobStatusCompleted:
			completed++
		case models.JobStatusFailed:
			failed++
		default:
			return models.MediaStatusGenerating
		}
	}
	switch {
	case failed == 0:
		return models.MediaStatusCompleted
	case completed == 0:
		return models.MediaStatusFailed
	default:
		return models.MediaStatusPartial
	}
}

// MergeResultURLs collects result URLs of completed jobs in job order, without duplicates.
func MergeResultURLs(jobs []*models.GenerationJob) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, j := range jobs {
		if j.Status != models.JobStatusCompleted {
			continue
		}
		for _, u := range j.ResultURLs {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

func countTerminal(jobs []*models.GenerationJob) int {
	n := 0
	for _, j := range jobs {
		if j.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Notifier keeps scheduled posts in step with their generation jobs.
// Nothing it does can fail a job: errors are logged and dropped.
type Notifier struct {
	posts     repository.PostRepository
	jobs      repository.JobRepository
	publisher provider.Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewNotifier creates a notifier. publisher may be nil to disable auto-publish.
func NewNotifier(posts repository.PostRepository, jobs repository.JobRepository, publisher provider.Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		posts:     posts,
		jobs:      jobs,
		publisher: publisher,
		timeout:   30 * time.Second,
		logger:    logger.With("component", "notifier"),
	}
}

// OnJobTerminal recomputes the post's aggregate after one of its jobs finished.
func (n *Notifier) OnJobTerminal(ctx context.Context, postID string) {
	log := n.logger.With("post_id", postID)

	jobs, err := n.jobs.ListByPost(ctx, postID)
	if err != nil {
		log.Error("failed to load post jobs", "error", err)
		return
	}

	status := AggregateStatus(jobs)
	urls := MergeResultURLs(jobs)
	updated, err := n.posts.UpdateMedia(ctx, postID, status, urls, countTerminal(jobs))
	if err != nil {
		log.Error("failed to update post media", "error", err)
		return
	}
	if !updated {
		log.Debug("newer post aggregate already stored")
		return
	}
	log.Info("post media updated", "media_status", status, "jobs", len(jobs), "urls", len(urls))

	if status == models.MediaStatusCompleted || status == models.MediaStatusPartial {
		n.autoPublish(ctx, postID, urls)
	}
}

func (n *Notifier) autoPublish(ctx context.Context, postID string, urls []string) {
	if n.publisher == nil || len(urls) == 0 {
		return
	}
	log := n.logger.With("post_id", postID)

	post, err := n.posts.GetByID(ctx, postID)
	if err != nil || post == nil {
		log.Error("failed to load post for publishing", "error", err)
		return
	}
	if !post.AutoPublish {
		return
	}

	claimed, err := n.posts.ClaimPublish(ctx, postID)
	if err != nil {
		log.Error("failed to claim post for publishing", "error", err)
		return
	}
	if !claimed {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	externalID, err := n.publisher.Publish(pubCtx, provider.PublishRequest{
		PostID:      post.ID,
		Caption:     post.Caption,
		Platforms:   post.Platforms,
		MediaURLs:   urls,
		ScheduledAt: post.ScheduledAt,
	})
	if err != nil {
		log.Warn("auto-publish failed", "error", err)
		if setErr := n.posts.SetPublishResult(ctx, postID, models.PublishStatusFailed, "", provider.UserMessage(err)); setErr != nil {
			log.Error("failed to record publish failure", "error", setErr)
		}
		return
	}

	if err := n.posts.SetPublishResult(ctx, postID, models.PublishStatusSubmitted, externalID, ""); err != nil {
		log.Error("failed to record publish result", "external_post_id", externalID, "error", err)
		return
	}
	log.Info("post submitted for publishing", "external_post_id", externalID)
}
