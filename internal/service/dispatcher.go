package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/logging"
	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/provider"
	"github.com/jmylchreest/genmedia-api/internal/repository"
	"github.com/jmylchreest/genmedia-api/internal/worker"
)

// Adapters maps an adapter kind to its implementation.
type Adapters map[catalog.AdapterKind]provider.Adapter

// TaskQueue runs dispatch work in the background.
type TaskQueue interface {
	Submit(name string, fn worker.TaskFunc) error
}

// GenerateInput is one requested generation.
type GenerateInput struct {
	Kind            models.JobKind
	Model           string
	Prompt          string
	ReferenceInputs []string
	Parameters      map[string]any
}

// GenerateResult is an accepted generation.
type GenerateResult struct {
	Job       *models.GenerationJob
	Remaining int
}

// EnqueueResult summarizes a batch enqueue for a post.
type EnqueueResult struct {
	Success          bool                    `json:"success"`
	TotalCreditsUsed int                     `json:"total_credits_used"`
	JobCount         int                     `json:"job_count"`
	Jobs             []*models.GenerationJob `json:"-"`
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// CallbackURL returns the provider callback address for a job.
	CallbackURL func(jobID string) string
	// SubmitTimeout bounds one provider submission.
	SubmitTimeout time.Duration
	// SubmitAttempts caps submissions per job when the provider answers with
	// a transient error. Timeouts are never resubmitted.
	SubmitAttempts int
}

// Dispatcher turns requests into reserved, persisted jobs and submits them in
// the background. Errors before the reservation are returned to the caller;
// anything after it ends in Finalize.
type Dispatcher struct {
	ledger     *LedgerService
	jobs       repository.JobRepository
	posts      repository.PostRepository
	catalog    *catalog.Catalog
	rotator    *Rotator
	adapters   Adapters
	queue      TaskQueue
	reconciler *Reconciler
	cfg        DispatcherConfig
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	ledger *LedgerService,
	jobs repository.JobRepository,
	posts repository.PostRepository,
	cat *catalog.Catalog,
	rotator *Rotator,
	adapters Adapters,
	queue TaskQueue,
	reconciler *Reconciler,
	cfg DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 5 * time.Minute
	}
	if cfg.SubmitAttempts <= 0 {
		cfg.SubmitAttempts = 2
	}
	if cfg.CallbackURL == nil {
		cfg.CallbackURL = func(jobID string) string { return "/callback/" + jobID }
	}
	return &Dispatcher{
		ledger:     ledger,
		jobs:       jobs,
		posts:      posts,
		catalog:    cat,
		rotator:    rotator,
		adapters:   adapters,
		queue:      queue,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger.With("component", "dispatcher"),
	}
}

type preparedJob struct {
	input GenerateInput
	route *catalog.Route
	cost  int
}

// prepare runs every check that must pass before credits are reserved.
func (d *Dispatcher) prepare(ctx context.Context, in GenerateInput) (*preparedJob, error) {
	route, err := d.catalog.Resolve(in.Kind, in.Model)
	if err != nil {
		return nil, err
	}
	if _, ok := d.adapters[route.Adapter]; !ok {
		return nil, fmt.Errorf("%w: %s has no configured adapter", ErrUnsupportedModel, in.Model)
	}
	if err := route.Validate(catalog.Input{
		Prompt:          in.Prompt,
		ReferenceInputs: in.ReferenceInputs,
		Parameters:      in.Parameters,
	}); err != nil {
		return nil, err
	}

	ok, err := d.rotator.HasActive(ctx, string(route.Adapter))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w for provider %s", ErrNoCredentialAvailable, route.Adapter)
	}

	return &preparedJob{input: in, route: route, cost: d.catalog.Cost(in.Model)}, nil
}

// CreateAndDispatch reserves the model's cost, persists a pending job and
// queues its submission. It never waits on the provider.
func (d *Dispatcher) CreateAndDispatch(ctx context.Context, userID string, in GenerateInput) (*GenerateResult, error) {
	p, err := d.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	remaining, err := d.ledger.Reserve(ctx, userID, p.cost, fmt.Sprintf("%s generation (%s)", in.Kind, in.Model))
	if err != nil {
		return nil, err
	}

	job, err := d.newJob(userID, "", p)
	if err == nil {
		err = d.jobs.Create(ctx, job)
	}
	if err != nil {
		if _, refundErr := d.ledger.Refund(ctx, userID, p.cost, "", "refund: job could not be created"); refundErr != nil {
			d.logger.Error("failed to refund after job creation failure", "user_id", userID, "amount", p.cost, "error", refundErr)
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	d.logger.Info("job accepted",
		"job_id", job.ID,
		"user_id", userID,
		"kind", in.Kind,
		"model", in.Model,
		"credits", p.cost,
		"remaining", remaining,
	)
	d.schedule(ctx, job, p.route)
	return &GenerateResult{Job: job, Remaining: remaining}, nil
}

// Enqueue creates every job for a post against one up-front reservation.
// Specs are all validated before anything is reserved. The share of specs
// whose job row could not be created is refunded.
func (d *Dispatcher) Enqueue(ctx context.Context, postID, userID string, specs []GenerateInput) (*EnqueueResult, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyPost
	}

	prepared := make([]*preparedJob, 0, len(specs))
	total := 0
	for i, spec := range specs {
		p, err := d.prepare(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("media[%d]: %w", i, err)
		}
		prepared = append(prepared, p)
		total += p.cost
	}

	if _, err := d.ledger.Reserve(ctx, userID, total, fmt.Sprintf("post %s media (%d jobs)", postID, len(specs))); err != nil {
		return nil, err
	}

	created := make([]*models.GenerationJob, 0, len(prepared))
	routes := make([]*catalog.Route, 0, len(prepared))
	unused := 0
	for _, p := range prepared {
		job, err := d.newJob(userID, postID, p)
		if err == nil {
			err = d.jobs.Create(ctx, job)
		}
		if err != nil {
			d.logger.Error("failed to create post job", "post_id", postID, "model", p.input.Model, "error", err)
			unused += p.cost
			continue
		}
		created = append(created, job)
		routes = append(routes, p.route)
	}

	if unused > 0 {
		if _, err := d.ledger.Refund(ctx, userID, unused, "", fmt.Sprintf("refund: %d post jobs not created", len(prepared)-len(created))); err != nil {
			d.logger.Error("failed to refund uncreated post jobs", "post_id", postID, "amount", unused, "error", err)
		}
	}

	if len(created) == 0 {
		return nil, ErrNoJobsCreated
	}
	if _, err := d.posts.UpdateMedia(ctx, postID, models.MediaStatusGenerating, nil, 0); err != nil {
		d.logger.Warn("failed to mark post generating", "post_id", postID, "error", err)
	}
	for i, job := range created {
		d.schedule(ctx, job, routes[i])
	}

	return &EnqueueResult{
		Success:          true,
		TotalCreditsUsed: total - unused,
		JobCount:         len(created),
		Jobs:             created,
	}, nil
}

func (d *Dispatcher) newJob(userID, postID string, p *preparedJob) (*models.GenerationJob, error) {
	params := []byte("{}")
	if len(p.input.Parameters) > 0 {
		var err error
		params, err = json.Marshal(p.input.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameters: %w", err)
		}
	}
	return &models.GenerationJob{
		ID:              ulid.Make().String(),
		UserID:          userID,
		Kind:            p.input.Kind,
		Model:           p.input.Model,
		Prompt:          p.input.Prompt,
		ReferenceInputs: p.input.ReferenceInputs,
		Parameters:      params,
		Status:          models.JobStatusPending,
		CreditsReserved: p.cost,
		PostID:          postID,
	}, nil
}

// schedule hands the job to the background queue. A rejected task can never
// run, so the job is failed (and refunded) on the spot.
func (d *Dispatcher) schedule(ctx context.Context, job *models.GenerationJob, route *catalog.Route) {
	jobID, userID := job.ID, job.UserID
	err := d.queue.Submit("dispatch:"+jobID, func(taskCtx context.Context) error {
		taskCtx = logging.WithUserID(logging.WithJobID(taskCtx, jobID), userID)
		return d.dispatch(taskCtx, jobID, route)
	})
	if err == nil {
		return
	}

	d.logger.Error("dispatch queue rejected job", "job_id", jobID, "error", err)
	if _, ferr := d.reconciler.Finalize(context.WithoutCancel(ctx), jobID, Failed("The service is busy. Please try again.")); ferr != nil {
		d.logger.Error("failed to fail rejected job", "job_id", jobID, "error", ferr)
	}
}

// dispatch is the background half: pending -> processing, then submit.
func (d *Dispatcher) dispatch(ctx context.Context, jobID string, route *catalog.Route) error {
	log := logging.FromContext(ctx, d.logger)

	job, err := d.jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if job == nil {
		log.Info("job no longer pending, skipping dispatch")
		return nil
	}

	cred, err := d.rotator.Next(ctx, string(route.Adapter))
	if err != nil {
		d.fail(ctx, jobID, "No provider credential is available.")
		return err
	}

	var params map[string]any
	if len(job.Parameters) > 0 {
		if err := json.Unmarshal(job.Parameters, &params); err != nil {
			d.fail(ctx, jobID, "Stored job parameters are invalid.")
			return fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	req := route.BuildRequest(catalog.Input{
		Prompt:          job.Prompt,
		ReferenceInputs: job.ReferenceInputs,
		Parameters:      params,
	})

	adapter := d.adapters[route.Adapter]
	sub := provider.SubmitRequest{
		JobID:       jobID,
		Kind:        job.Kind,
		Model:       job.Model,
		Path:        req.Path,
		Body:        req.Body,
		CallbackURL: d.cfg.CallbackURL(jobID),
		APIKey:      cred.Secret,
	}

	var res *provider.SubmitResult
	for attempt := 1; ; attempt++ {
		submitCtx, cancel := context.WithTimeout(ctx, d.cfg.SubmitTimeout)
		start := time.Now()
		res, err = adapter.Submit(submitCtx, sub)
		cancel()
		if err == nil {
			if err := d.jobs.SetExternalTaskID(ctx, jobID, res.ExternalTaskID); err != nil {
				log.Error("failed to store external task id", "external_task_id", res.ExternalTaskID, "error", err)
			}
			log.Info("job submitted",
				"adapter", adapter.Name(),
				"external_task_id", res.ExternalTaskID,
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			break
		}

		log.Warn("provider submit failed",
			"adapter", adapter.Name(),
			"credential_id", cred.ID,
			"attempt", attempt,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		if attempt >= d.cfg.SubmitAttempts || !resubmittable(ctx, err) {
			d.fail(ctx, jobID, provider.UserMessage(err))
			return fmt.Errorf("submit: %w", err)
		}
		if next, err := d.rotator.Next(ctx, string(route.Adapter)); err == nil {
			cred = next
			sub.APIKey = cred.Secret
		}
	}

	if res.Immediate != nil && res.Immediate.Status.IsTerminal() {
		if _, err := d.reconciler.Finalize(ctx, jobID, OutcomeFromCallback(res.Immediate)); err != nil {
			return fmt.Errorf("failed to finalize immediate result: %w", err)
		}
	}
	return nil
}

// resubmittable reports whether a failed submission can be sent again. A
// timed out submission may still have been accepted, so it never is.
func resubmittable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || !provider.IsRetryable(err) {
		return false
	}
	var pe *provider.Error
	return errors.As(err, &pe) && pe.Category != provider.CategoryTimeout
}

func (d *Dispatcher) fail(ctx context.Context, jobID, msg string) {
	if _, err := d.reconciler.Finalize(ctx, jobID, Failed(msg)); err != nil && !errors.Is(err, ErrJobNotFound) {
		d.logger.Error("failed to finalize job", "job_id", jobID, "error", err)
	}
}
