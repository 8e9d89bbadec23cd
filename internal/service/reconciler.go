package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/provider"
	"github.com/jmylchreest/genmedia-api/internal/repository"
)

// Outcome is what a provider reported for a job.
type Outcome struct {
	Success      bool
	ResultURLs   []string
	ErrorMessage string
}

// Succeeded builds a success outcome.
func Succeeded(urls ...string) Outcome {
	return Outcome{Success: true, ResultURLs: urls}
}

// Failed builds a failure outcome.
func Failed(msg string) Outcome {
	return Outcome{ErrorMessage: msg}
}

// OutcomeFromCallback converts a terminal callback.
func OutcomeFromCallback(cb *provider.Callback) Outcome {
	if cb.Status == provider.StatusSuccess {
		return Succeeded(cb.ResultURLs...)
	}
	return Failed(cb.ErrorMessage)
}

// JobArchiver stores a record of a finished job.
type JobArchiver interface {
	ArchiveJob(ctx context.Context, job *models.GenerationJob) error
}

// CallbackAction describes what a callback delivery did.
type CallbackAction string

const (
	CallbackFinalized    CallbackAction = "finalized"
	CallbackDuplicate    CallbackAction = "duplicate"
	CallbackInFlight     CallbackAction = "in_flight"
	CallbackUnrecognized CallbackAction = "unrecognized"
	CallbackMismatch     CallbackAction = "task_mismatch"
)

// CallbackResult is returned by HandleCallback.
type CallbackResult struct {
	Action CallbackAction
	Job    *models.GenerationJob
}

// ReconcilerConfig configures the sweeps.
type ReconcilerConfig struct {
	// PollAfter is how long a processing job waits for a callback before it is polled.
	PollAfter time.Duration
	// MaxAge fails non-terminal jobs older than this.
	MaxAge time.Duration
	// PollTimeout bounds one provider status call.
	PollTimeout time.Duration
	// BatchSize limits jobs per sweep.
	BatchSize int
}

// Reconciler is the only writer of terminal job states. Every terminal write
// goes through Finalize, which refunds failed jobs exactly once.
type Reconciler struct {
	jobs     repository.JobRepository
	notifier *Notifier
	archiver JobArchiver
	catalog  *catalog.Catalog
	rotator  *Rotator
	adapters Adapters
	cfg      ReconcilerConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewReconciler creates a reconciler. notifier and archiver may be nil.
func NewReconciler(
	jobs repository.JobRepository,
	notifier *Notifier,
	archiver JobArchiver,
	cat *catalog.Catalog,
	rotator *Rotator,
	adapters Adapters,
	cfg ReconcilerConfig,
	logger *slog.Logger,
) *Reconciler {
	if cfg.PollAfter <= 0 {
		cfg.PollAfter = 2 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Minute
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reconciler{
		jobs:     jobs,
		notifier: notifier,
		archiver: archiver,
		catalog:  cat,
		rotator:  rotator,
		adapters: adapters,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With("component", "reconciler"),
	}
}

// Finalize moves a job to its terminal state. If the job is already terminal
// the stored record is returned unchanged.
func (r *Reconciler) Finalize(ctx context.Context, jobID string, out Outcome) (*models.GenerationJob, error) {
	job, _, err := r.finalize(ctx, jobID, out)
	return job, err
}

func (r *Reconciler) finalize(ctx context.Context, jobID string, out Outcome) (*models.GenerationJob, bool, error) {
	params := repository.FinalizeParams{CompletedAt: r.now()}
	switch {
	case out.Success && len(out.ResultURLs) > 0:
		params.Status = models.JobStatusCompleted
		params.ResultURLs = out.ResultURLs
	case out.Success:
		params.Status = models.JobStatusFailed
		params.ErrorMessage = provider.ErrNoResult.Error()
	default:
		params.Status = models.JobStatusFailed
		params.ErrorMessage = out.ErrorMessage
		if params.ErrorMessage == "" {
			params.ErrorMessage = "generation failed"
		}
	}

	job, applied, err := r.jobs.Finalize(ctx, jobID, params)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, false, ErrJobNotFound
		}
		return nil, false, fmt.Errorf("failed to finalize job %s: %w", jobID, err)
	}

	log := r.logger.With("job_id", jobID, "user_id", job.UserID)
	if !applied {
		log.Debug("job already terminal", "status", job.Status, "attempted", params.Status)
		return job, false, nil
	}

	if job.Status == models.JobStatusFailed {
		log.Warn("job failed", "credits_refunded", job.CreditsReserved, "error", job.ErrorMessage)
	} else {
		log.Info("job completed", "results", len(job.ResultURLs))
	}

	r.afterCommit(ctx, job)
	return job, true, nil
}

func (r *Reconciler) afterCommit(ctx context.Context, job *models.GenerationJob) {
	if job.PostID != "" && r.notifier != nil {
		r.notifier.OnJobTerminal(ctx, job.PostID)
	}
	if r.archiver != nil {
		if err := r.archiver.ArchiveJob(ctx, job); err != nil {
			r.logger.Warn("failed to archive job manifest", "job_id", job.ID, "error", err)
		}
	}
}

// HandleCallback normalizes a provider callback and finalizes the job when
// the callback is terminal. Unrecognized payloads and non-terminal statuses
// leave the job untouched and are not errors: the provider must see success.
func (r *Reconciler) HandleCallback(ctx context.Context, jobID string, body []byte) (*CallbackResult, error) {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	log := r.logger.With("job_id", jobID)

	cb, err := provider.NormalizeCallback(body)
	if err != nil {
		log.Warn("unrecognized callback payload", "error", err, "bytes", len(body))
		return &CallbackResult{Action: CallbackUnrecognized, Job: job}, nil
	}
	log = log.With("strategy", cb.Strategy, "raw_status", cb.RawStatus)

	// Once the provider has named the task, only payloads naming the same
	// task may finish the job. Taskless payloads are ignored.
	if job.ExternalTaskID != "" && cb.TaskID != job.ExternalTaskID {
		log.Warn("callback task id does not match job", "callback_task_id", cb.TaskID, "external_task_id", job.ExternalTaskID)
		return &CallbackResult{Action: CallbackMismatch, Job: job}, nil
	}

	if !cb.Status.IsTerminal() {
		log.Info("callback not terminal", "status", cb.Status)
		return &CallbackResult{Action: CallbackInFlight, Job: job}, nil
	}

	final, applied, err := r.finalize(ctx, jobID, OutcomeFromCallback(cb))
	if err != nil {
		return nil, err
	}
	action := CallbackFinalized
	if !applied {
		action = CallbackDuplicate
	}
	return &CallbackResult{Action: action, Job: final}, nil
}

// Refresh polls the provider for a processing job and finalizes it when the
// provider reports a terminal status. Other jobs are returned as stored.
func (r *Reconciler) Refresh(ctx context.Context, job *models.GenerationJob) (*models.GenerationJob, error) {
	if job.Status != models.JobStatusProcessing || job.ExternalTaskID == "" {
		return job, nil
	}

	route, err := r.catalog.Resolve(job.Kind, job.Model)
	if err != nil {
		return nil, err
	}
	adapter, ok := r.adapters[route.Adapter]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter %s", ErrUnsupportedModel, route.Adapter)
	}
	cred, err := r.rotator.Next(ctx, string(route.Adapter))
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithTimeout(ctx, r.cfg.PollTimeout)
	defer cancel()
	cb, err := adapter.Status(pollCtx, cred.Secret, job.ExternalTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll job %s: %w", job.ID, err)
	}
	if !cb.Status.IsTerminal() {
		if err := r.jobs.TouchPolled(ctx, job.ID, r.now()); err != nil {
			r.logger.Warn("failed to record poll", "job_id", job.ID, "error", err)
		}
		return job, nil
	}
	return r.Finalize(ctx, job.ID, OutcomeFromCallback(cb))
}

// PollStale polls processing jobs that have waited longer than PollAfter
// without a callback or a poll. Returns the number of jobs finalized.
func (r *Reconciler) PollStale(ctx context.Context) (int, error) {
	jobs, err := r.jobs.ListProcessingBefore(ctx, r.now().Add(-r.cfg.PollAfter), r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	finalized := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return finalized, ctx.Err()
		}
		updated, err := r.Refresh(ctx, job)
		if err != nil {
			r.logger.Warn("poll failed", "job_id", job.ID, "error", err)
			continue
		}
		if updated.Status.IsTerminal() {
			finalized++
		}
	}
	return finalized, nil
}

// ExpireStale fails jobs that never reached a terminal state within MaxAge,
// refunding their credits. Returns the number of jobs failed.
func (r *Reconciler) ExpireStale(ctx context.Context) (int, error) {
	jobs, err := r.jobs.ListActiveCreatedBefore(ctx, r.now().Add(-r.cfg.MaxAge), r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	expired := 0
	for _, job := range jobs {
		_, applied, err := r.finalize(ctx, job.ID, Failed("generation timed out"))
		if err != nil {
			r.logger.Error("failed to expire job", "job_id", job.ID, "error", err)
			continue
		}
		if applied {
			expired++
		}
	}
	return expired, nil
}
