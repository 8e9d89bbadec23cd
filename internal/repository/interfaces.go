// Package repository defines repository interfaces for data access.
// All mutations of users.credit_balance and generation_jobs.status go through
// the conditional statements in this package.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

var (
	// ErrUserNotFound is returned when a balance mutation targets an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateReference is returned when a grant reuses a payment reference.
	ErrDuplicateReference = errors.New("duplicate credit reference")

	// ErrJobNotFound is returned when finalizing a job that does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// LedgerRepository is the credit ledger. Every method that changes a balance
// writes a credit_transactions row in the same transaction.
type LedgerRepository interface {
	// EnsureUser creates the user with an initial grant if it does not exist.
	EnsureUser(ctx context.Context, userID string, initialCredits int) (created bool, err error)
	GetBalance(ctx context.Context, userID string) (int, error)
	// Reserve decrements only if balance >= amount. When ok is false nothing
	// changed and balance is the current (insufficient) balance.
	Reserve(ctx context.Context, userID string, amount int, description string) (balance int, ok bool, err error)
	Refund(ctx context.Context, userID string, amount int, jobID, description string) (int, error)
	// Grant adds credits. A non-empty reference makes the grant idempotent.
	Grant(ctx context.Context, userID string, amount int, reference, description string) (int, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)
}

// FinalizeParams describes the terminal write for a job.
type FinalizeParams struct {
	Status       models.JobStatus // completed or failed
	ResultURLs   []string
	ErrorMessage string
	CompletedAt  time.Time
}

// JobRepository defines methods for generation job data access.
type JobRepository interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error)
	ListByPost(ctx context.Context, postID string) ([]*models.GenerationJob, error)
	// MarkProcessing moves a pending job to processing and bumps attempts.
	// Returns nil when the job was not pending.
	MarkProcessing(ctx context.Context, id string) (*models.GenerationJob, error)
	// SetExternalTaskID records the provider task id while the job is processing.
	SetExternalTaskID(ctx context.Context, id, taskID string) error
	// Finalize performs the first terminal write and refunds failed jobs in
	// the same transaction. applied is false when the job was already terminal.
	Finalize(ctx context.Context, id string, params FinalizeParams) (job *models.GenerationJob, applied bool, err error)
	// TouchPolled records that a processing job was polled at polledAt so the
	// next sweep moves on to jobs that have waited longer.
	TouchPolled(ctx context.Context, id string, polledAt time.Time) error
	// ListProcessingBefore returns processing jobs with a task id last touched before cutoff.
	ListProcessingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.GenerationJob, error)
	// ListActiveCreatedBefore returns non-terminal jobs created before cutoff.
	ListActiveCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.GenerationJob, error)
}

// PostRepository defines methods for scheduled post data access.
type PostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) error
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ScheduledPost, error)
	// UpdateMedia stores the aggregate unless a newer aggregate (more terminal
	// jobs) has already been written. Returns false when skipped.
	UpdateMedia(ctx context.Context, id string, status models.MediaStatus, urls []string, terminalCount int) (bool, error)
	// ClaimPublish moves a draft post to publishing. Returns false if another caller won.
	ClaimPublish(ctx context.Context, id string) (bool, error)
	SetPublishResult(ctx context.Context, id string, status models.PublishStatus, externalPostID, errMsg string) error
}

// CredentialRepository defines methods for outbound provider credentials.
type CredentialRepository interface {
	// Register inserts the credential unless (provider, name) already exists.
	Register(ctx context.Context, cred *models.APICredential) (created bool, err error)
	// NextLeastUsed atomically selects the active credential with the lowest
	// usage count (least recently used first on ties) and increments its usage.
	// Returns nil when no active credential exists.
	NextLeastUsed(ctx context.Context, provider string, now time.Time) (*models.APICredential, error)
	CountActive(ctx context.Context, provider string) (int, error)
	GetByID(ctx context.Context, id string) (*models.APICredential, error)
	List(ctx context.Context) ([]*models.APICredential, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Ledger     LedgerRepository
	Job        JobRepository
	Post       PostRepository
	Credential CredentialRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Ledger:     NewSQLiteLedgerRepository(db),
		Job:        NewSQLiteJobRepository(db),
		Post:       NewSQLitePostRepository(db),
		Credential: NewSQLiteCredentialRepository(db),
	}
}
