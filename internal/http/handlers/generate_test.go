package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/service"
)

type fakeGenerator struct {
	calls []service.GenerateInput
	err   error
}

func (g *fakeGenerator) CreateAndDispatch(_ context.Context, userID string, in service.GenerateInput) (*service.GenerateResult, error) {
	g.calls = append(g.calls, in)
	if g.err != nil {
		return nil, g.err
	}
	return &service.GenerateResult{
		Job: &models.GenerationJob{
			ID:              "job-new",
			UserID:          userID,
			Kind:            in.Kind,
			Model:           in.Model,
			Status:          models.JobStatusPending,
			CreditsReserved: 20,
		},
		Remaining: 80,
	}, nil
}

type fakeIdempotency struct {
	existing  string
	beginErr  error
	completed map[string]string
	aborted   []string
}

func (f *fakeIdempotency) Begin(_ context.Context, _, _ string) (string, error) {
	return f.existing, f.beginErr
}

func (f *fakeIdempotency) Complete(_ context.Context, _, key, jobID string) error {
	if f.completed == nil {
		f.completed = map[string]string{}
	}
	f.completed[key] = jobID
	return nil
}

func (f *fakeIdempotency) Abort(_ context.Context, _, key string) error {
	f.aborted = append(f.aborted, key)
	return nil
}

type fakeJobs struct {
	jobs map[string]*models.GenerationJob
}

func (f *fakeJobs) Get(_ context.Context, userID, jobID string) (*models.GenerationJob, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, service.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobs) List(_ context.Context, userID string, limit, _ int) ([]*models.GenerationJob, error) {
	var out []*models.GenerationJob
	for _, j := range f.jobs {
		if j.UserID == userID && len(out) < limit {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) Refresh(ctx context.Context, userID, jobID string) (*models.GenerationJob, error) {
	job, err := f.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatusCompleted
	job.ResultURLs = []string{"https://cdn.example.com/out.png"}
	return job, nil
}

type fixedBalance int

func (b fixedBalance) Balance(context.Context, string) (int, error) { return int(b), nil }

func generateInput(key string) *GenerateInput {
	in := &GenerateInput{Kind: "image", IdempotencyKey: key}
	in.Body.Model = "flux-kontext-pro"
	in.Body.Prompt = "a red kite"
	return in
}

func TestGenerate_Accepted(t *testing.T) {
	gen := &fakeGenerator{}
	idem := &fakeIdempotency{}
	h := NewGenerateHandler(gen, idem, &fakeJobs{}, fixedBalance(0), testLogger())

	out, err := h.Generate(userCtx("user_1"), generateInput("key-1"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out.Body.ID != "job-new" || out.Body.Status != "pending" {
		t.Errorf("body = %+v", out.Body)
	}
	if out.Body.CreditsCost != 20 || out.Body.CreditsRemaining != 80 {
		t.Errorf("credits = %d/%d, want 20/80", out.Body.CreditsCost, out.Body.CreditsRemaining)
	}
	if len(gen.calls) != 1 || gen.calls[0].Kind != models.JobKindImage {
		t.Errorf("generator calls = %+v", gen.calls)
	}
	if idem.completed["key-1"] != "job-new" {
		t.Errorf("idempotency key not completed: %+v", idem.completed)
	}
}

func TestGenerate_ReplaysIdempotencyKey(t *testing.T) {
	gen := &fakeGenerator{}
	jobs := &fakeJobs{jobs: map[string]*models.GenerationJob{
		"job-old": {ID: "job-old", UserID: "user_1", Status: models.JobStatusProcessing, CreditsReserved: 20},
	}}
	h := NewGenerateHandler(gen, &fakeIdempotency{existing: "job-old"}, jobs, fixedBalance(55), testLogger())

	out, err := h.Generate(userCtx("user_1"), generateInput("key-1"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !out.Body.Replayed || out.Body.ID != "job-old" || out.Body.Status != "processing" {
		t.Errorf("body = %+v, want replay of job-old", out.Body)
	}
	if out.Body.CreditsRemaining != 55 {
		t.Errorf("CreditsRemaining = %d, want 55", out.Body.CreditsRemaining)
	}
	if len(gen.calls) != 0 {
		t.Error("a replayed key must not create another job")
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		genErr     error
		beginErr   error
		wantStatus int
		wantAbort  bool
	}{
		{"insufficient credits", &service.InsufficientCreditsError{Required: 20, Available: 5}, nil, http.StatusPaymentRequired, true},
		{"bad parameters", &service.InvalidParametersError{Field: "prompt", Reason: "required"}, nil, http.StatusBadRequest, true},
		{"key in flight", nil, service.ErrIdempotencyInProgress, http.StatusConflict, false},
		{"no credential", service.ErrNoCredentialAvailable, nil, http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idem := &fakeIdempotency{beginErr: tt.beginErr}
			h := NewGenerateHandler(&fakeGenerator{err: tt.genErr}, idem, &fakeJobs{}, fixedBalance(0), testLogger())

			_, err := h.Generate(userCtx("user_1"), generateInput("key-1"))
			if got := statusOf(t, err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
			if aborted := len(idem.aborted) == 1; aborted != tt.wantAbort {
				t.Errorf("aborted = %v, want %v", aborted, tt.wantAbort)
			}
		})
	}
}

func TestGenerate_WithoutKeySkipsGuard(t *testing.T) {
	idem := &fakeIdempotency{beginErr: errors.New("should not be called")}
	h := NewGenerateHandler(&fakeGenerator{}, idem, &fakeJobs{}, fixedBalance(0), testLogger())

	if _, err := h.Generate(userCtx("user_1"), generateInput("  ")); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(idem.completed) != 0 {
		t.Error("blank key should not be recorded")
	}
}

func TestGenerate_RequiresUser(t *testing.T) {
	h := NewGenerateHandler(&fakeGenerator{}, nil, &fakeJobs{}, fixedBalance(0), testLogger())
	_, err := h.Generate(context.Background(), generateInput(""))
	if got := statusOf(t, err); got != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", got)
	}
}
