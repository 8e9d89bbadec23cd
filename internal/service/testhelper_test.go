package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/database/migrations"
	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/provider"
	"github.com/jmylchreest/genmedia-api/internal/repository"
	"github.com/jmylchreest/genmedia-api/internal/worker"
)

const testCallbackBase = "https://api.example.com/api/v1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestRepos creates repositories over an in-memory database.
func setupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return repository.NewRepositories(db)
}

// ========================================
// Fakes
// ========================================

// fakeAdapter records submissions. By default every submit is accepted with
// task id "task-{jobID}".
type fakeAdapter struct {
	mu       sync.Mutex
	name     string
	submitFn func(ctx context.Context, req provider.SubmitRequest) (*provider.SubmitResult, error)
	statusFn func(ctx context.Context, apiKey, taskID string) (*provider.Callback, error)
	submits  []provider.SubmitRequest
	polls    []string
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{name: name}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Submit(ctx context.Context, req provider.SubmitRequest) (*provider.SubmitResult, error) {
	f.mu.Lock()
	f.submits = append(f.submits, req)
	fn := f.submitFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &provider.SubmitResult{ExternalTaskID: "task-" + req.JobID}, nil
}

func (f *fakeAdapter) Status(ctx context.Context, apiKey, taskID string) (*provider.Callback, error) {
	f.mu.Lock()
	f.polls = append(f.polls, taskID)
	fn := f.statusFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, apiKey, taskID)
	}
	return &provider.Callback{TaskID: taskID, Status: provider.StatusInFlight}, nil
}

func (f *fakeAdapter) Submits() []provider.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.SubmitRequest(nil), f.submits...)
}

// syncQueue runs every task inline.
type syncQueue struct{}

func (syncQueue) Submit(_ string, fn worker.TaskFunc) error {
	_ = fn(context.Background())
	return nil
}

// rejectQueue refuses every task.
type rejectQueue struct{}

func (rejectQueue) Submit(string, worker.TaskFunc) error {
	return worker.ErrQueueFull
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	calls []provider.PublishRequest
}

func (p *fakePublisher) Publish(_ context.Context, req provider.PublishRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return "", p.err
	}
	return "ext-" + req.PostID, nil
}

func (p *fakePublisher) Calls() []provider.PublishRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.PublishRequest(nil), p.calls...)
}

type fakeArchiver struct {
	mu   sync.Mutex
	jobs []string
}

func (a *fakeArchiver) ArchiveJob(_ context.Context, job *models.GenerationJob) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job.ID)
	return nil
}

func (a *fakeArchiver) Archived() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.jobs...)
}

// ========================================
// Test environment
// ========================================

type envConfig struct {
	queue         TaskQueue
	costOverrides map[string]int
	submitTimeout time.Duration
	noCredentials bool
}

type testEnv struct {
	repos      *repository.Repositories
	catalog    *catalog.Catalog
	taskAPI    *fakeAdapter
	prediction *fakeAdapter
	publisher  *fakePublisher
	archiver   *fakeArchiver
	ledger     *LedgerService
	rotator    *Rotator
	notifier   *Notifier
	reconciler *Reconciler
	dispatcher *Dispatcher
	jobs       *JobService
	posts      *PostService
}

func newTestEnv(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()

	if cfg.queue == nil {
		cfg.queue = syncQueue{}
	}

	env := &testEnv{
		repos:      setupTestRepos(t),
		catalog:    catalog.New(catalog.Options{DefaultCost: 10, CostOverrides: cfg.costOverrides}),
		taskAPI:    newFakeAdapter("taskapi"),
		prediction: newFakeAdapter("prediction"),
		publisher:  &fakePublisher{},
		archiver:   &fakeArchiver{},
	}
	adapters := Adapters{
		catalog.AdapterTaskAPI:    env.taskAPI,
		catalog.AdapterPrediction: env.prediction,
	}

	env.ledger = NewLedgerService(env.repos.Ledger, 0, logger)
	env.rotator = NewRotator(env.repos.Credential, nil, logger)
	env.notifier = NewNotifier(env.repos.Post, env.repos.Job, env.publisher, logger)
	env.reconciler = NewReconciler(env.repos.Job, env.notifier, env.archiver, env.catalog, env.rotator, adapters, ReconcilerConfig{}, logger)
	env.dispatcher = NewDispatcher(env.ledger, env.repos.Job, env.repos.Post, env.catalog, env.rotator, adapters, cfg.queue, env.reconciler, DispatcherConfig{
		CallbackURL:   func(jobID string) string { return testCallbackBase + "/callback/" + jobID },
		SubmitTimeout: cfg.submitTimeout,
	}, logger)
	env.jobs = NewJobService(env.repos.Job, env.reconciler, logger)
	env.posts = NewPostService(env.repos.Post, env.repos.Job, env.dispatcher, logger)

	if !cfg.noCredentials {
		for _, p := range []string{"taskapi", "prediction"} {
			if _, err := env.rotator.Register(ctx, p, "primary", p+"-secret"); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
		}
	}
	return env
}

// fundUser creates userID with the given balance.
func (e *testEnv) fundUser(t *testing.T, userID string, credits int) {
	t.Helper()
	if _, err := e.repos.Ledger.EnsureUser(context.Background(), userID, credits); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
}

func (e *testEnv) balance(t *testing.T, userID string) int {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	return b
}

func (e *testEnv) job(t *testing.T, jobID string) *models.GenerationJob {
	t.Helper()
	job, err := e.repos.Job.GetByID(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if job == nil {
		t.Fatalf("job %s not found", jobID)
	}
	return job
}

// insertJob stores a job holding a reservation that has already been taken.
func (e *testEnv) insertJob(t *testing.T, job *models.GenerationJob) *models.GenerationJob {
	t.Helper()
	ctx := context.Background()
	if job.Kind == "" {
		job.Kind = models.JobKindVideo
	}
	if job.Model == "" {
		job.Model = "veo3_fast"
	}
	if job.Prompt == "" {
		job.Prompt = "a lighthouse at dusk"
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if _, _, err := e.repos.Ledger.Reserve(ctx, job.UserID, job.CreditsReserved, "test reservation"); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if err := e.repos.Job.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return job
}
