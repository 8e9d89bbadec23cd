package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

func TestAggregateStatus(t *testing.T) {
	job := func(s models.JobStatus) *models.GenerationJob { return &models.GenerationJob{Status: s} }
	const (
		c = models.JobStatusCompleted
		f = models.JobStatusFailed
		p = models.JobStatusProcessing
		q = models.JobStatusPending
	)

	tests := []struct {
		name string
		jobs []*models.GenerationJob
		want models.MediaStatus
	}{
		{"no jobs", nil, models.MediaStatusGenerating},
		{"all completed", []*models.GenerationJob{job(c), job(c), job(c)}, models.MediaStatusCompleted},
		{"all failed", []*models.GenerationJob{job(f), job(f), job(f)}, models.MediaStatusFailed},
		{"mixed terminal", []*models.GenerationJob{job(c), job(f), job(c)}, models.MediaStatusPartial},
		{"one processing", []*models.GenerationJob{job(c), job(p), job(f)}, models.MediaStatusGenerating},
		{"one pending", []*models.GenerationJob{job(c), job(c), job(q)}, models.MediaStatusGenerating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateStatus(tt.jobs); got != tt.want {
				t.Errorf("AggregateStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMergeResultURLs(t *testing.T) {
	jobs := []*models.GenerationJob{
		{Status: models.JobStatusCompleted, ResultURLs: []string{"https://a", "https://b"}},
		{Status: models.JobStatusFailed, ResultURLs: []string{"https://ignored"}},
		{Status: models.JobStatusCompleted, ResultURLs: []string{"https://b", "https://c"}},
	}
	want := []string{"https://a", "https://b", "https://c"}
	if got := MergeResultURLs(jobs); !reflect.DeepEqual(got, want) {
		t.Errorf("MergeResultURLs() = %v, want %v", got, want)
	}
}

// createPostWithJobs stores a post and n processing jobs attached to it.
func createPostWithJobs(t *testing.T, env *testEnv, autoPublish bool, n int) (*models.ScheduledPost, []string) {
	t.Helper()
	post := &models.ScheduledPost{
		ID:          "post-1",
		UserID:      "user_1",
		Caption:     "launch day",
		Platforms:   []string{"instagram", "tiktok"},
		AutoPublish: autoPublish,
	}
	if err := env.repos.Post.Create(context.Background(), post); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ids := make([]string, n)
	for i := range ids {
		job := processingJob(post.ID+"-job-"+string(rune('a'+i)), "user_1", 10)
		job.PostID = post.ID
		env.insertJob(t, job)
		ids[i] = job.ID
	}
	return post, ids
}

func TestNotifier_AggregatesAndPublishes(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	env.fundUser(t, "user_1", 100)
	post, ids := createPostWithJobs(t, env, true, 3)
	ctx := context.Background()

	steps := []struct {
		jobID   string
		outcome Outcome
		want    models.MediaStatus
	}{
		{ids[0], Succeeded("https://cdn.example.com/1.png"), models.MediaStatusGenerating},
		{ids[1], Failed("blocked"), models.MediaStatusGenerating},
		{ids[2], Succeeded("https://cdn.example.com/3.png"), models.MediaStatusPartial},
	}
	for _, s := range steps {
		if _, err := env.reconciler.Finalize(ctx, s.jobID, s.outcome); err != nil {
			t.Fatalf("Finalize(%s) error = %v", s.jobID, err)
		}
		got, err := env.repos.Post.GetByID(ctx, post.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.MediaStatus != s.want {
			t.Errorf("after %s MediaStatus = %s, want %s", s.jobID, got.MediaStatus, s.want)
		}
	}

	stored, _ := env.repos.Post.GetByID(ctx, post.ID)
	wantURLs := []string{"https://cdn.example.com/1.png", "https://cdn.example.com/3.png"}
	if !reflect.DeepEqual(stored.MediaURLs, wantURLs) {
		t.Errorf("MediaURLs = %v, want %v", stored.MediaURLs, wantURLs)
	}
	if stored.PublishStatus != models.PublishStatusSubmitted {
		t.Errorf("PublishStatus = %s, want submitted", stored.PublishStatus)
	}
	if stored.ExternalPostID != "ext-"+post.ID {
		t.Errorf("ExternalPostID = %q", stored.ExternalPostID)
	}

	calls := env.publisher.Calls()
	if len(calls) != 1 {
		t.Fatalf("publish calls = %d, want 1", len(calls))
	}
	if !reflect.DeepEqual(calls[0].MediaURLs, wantURLs) || calls[0].Caption != "launch day" {
		t.Errorf("publish request = %+v", calls[0])
	}

	// A repeated notification must not publish twice.
	env.notifier.OnJobTerminal(ctx, post.ID)
	if got := len(env.publisher.Calls()); got != 1 {
		t.Errorf("publish calls after repeat = %d, want 1", got)
	}
}

func TestNotifier_NoPublishWhenDisabledOrFailed(t *testing.T) {
	tests := []struct {
		name        string
		autoPublish bool
		outcome     Outcome
	}{
		{"auto publish off", false, Succeeded("https://cdn.example.com/1.png")},
		{"all failed", true, Failed("blocked")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envConfig{})
			env.fundUser(t, "user_1", 100)
			post, ids := createPostWithJobs(t, env, tt.autoPublish, 1)

			if _, err := env.reconciler.Finalize(context.Background(), ids[0], tt.outcome); err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			if got := len(env.publisher.Calls()); got != 0 {
				t.Errorf("publish calls = %d, want 0", got)
			}
			stored, _ := env.repos.Post.GetByID(context.Background(), post.ID)
			if stored.PublishStatus != models.PublishStatusDraft {
				t.Errorf("PublishStatus = %s, want draft", stored.PublishStatus)
			}
		})
	}
}

func TestNotifier_PublishErrorIsRecorded(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	env.fundUser(t, "user_1", 100)
	env.publisher.err = errors.New("social api down")
	post, ids := createPostWithJobs(t, env, true, 1)

	job, err := env.reconciler.Finalize(context.Background(), ids[0], Succeeded("https://cdn.example.com/1.png"))
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("job Status = %s, publishing must not affect the job", job.Status)
	}

	stored, _ := env.repos.Post.GetByID(context.Background(), post.ID)
	if stored.MediaStatus != models.MediaStatusCompleted {
		t.Errorf("MediaStatus = %s, want completed", stored.MediaStatus)
	}
	if stored.PublishStatus != models.PublishStatusFailed {
		t.Errorf("PublishStatus = %s, want failed", stored.PublishStatus)
	}
	if stored.PublishError == "" {
		t.Error("PublishError should be recorded")
	}
}
