package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

func TestJobService_Get(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	env.fundUser(t, "owner", 100)
	env.insertJob(t, &models.GenerationJob{ID: "job-1", UserID: "owner", CreditsReserved: 10})
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		jobID   string
		wantErr error
	}{
		{"owner", "owner", "job-1", nil},
		{"other user", "intruder", "job-1", ErrJobNotFound},
		{"missing job", "owner", "job-404", ErrJobNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := env.jobs.Get(ctx, tt.userID, tt.jobID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Get() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if job.ID != tt.jobID {
				t.Errorf("ID = %q, want %q", job.ID, tt.jobID)
			}
		})
	}
}

func TestJobService_RefreshChecksOwner(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	env.fundUser(t, "owner", 100)
	env.insertJob(t, processingJob("job-1", "owner", 10))

	if _, err := env.jobs.Refresh(context.Background(), "intruder", "job-1"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("Refresh() error = %v, want ErrJobNotFound", err)
	}
	if len(env.taskAPI.polls) != 0 {
		t.Error("provider should not be polled for another user's job")
	}
}

func TestJobService_ListScopedToUser(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	env.fundUser(t, "a", 100)
	env.fundUser(t, "b", 100)
	env.insertJob(t, &models.GenerationJob{ID: "a-1", UserID: "a", CreditsReserved: 10})
	env.insertJob(t, &models.GenerationJob{ID: "a-2", UserID: "a", CreditsReserved: 10})
	env.insertJob(t, &models.GenerationJob{ID: "b-1", UserID: "b", CreditsReserved: 10})

	jobs, err := env.jobs.List(context.Background(), "a", 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	for _, j := range jobs {
		if j.UserID != "a" {
			t.Errorf("job %s belongs to %s", j.ID, j.UserID)
		}
	}
}
