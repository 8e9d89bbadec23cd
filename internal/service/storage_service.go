package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/jmylchreest/genmedia-api/internal/config"
	"github.com/jmylchreest/genmedia-api/internal/models"
)

// ObjectStore is the subset of the S3 client used here.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// StorageService handles object storage operations (Tigris/S3-compatible).
// Finished jobs are archived as JSON manifests under manifests/.
type StorageService struct {
	client  ObjectStore
	bucket  string
	enabled bool
	archive bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{logger: logger}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.StorageEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		}
		o.UsePathStyle = true // Required for some S3-compatible services
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
		"archive_manifests", cfg.ArchiveManifests,
	)

	return NewStorageServiceWithClient(client, cfg.StorageBucket, cfg.ArchiveManifests, logger), nil
}

// NewStorageServiceWithClient wraps an existing client.
func NewStorageServiceWithClient(client ObjectStore, bucket string, archive bool, logger *slog.Logger) *StorageService {
	return &StorageService{
		client:  client,
		bucket:  bucket,
		enabled: client != nil,
		archive: archive,
		logger:  logger,
	}
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Client returns the underlying client (nil if storage is disabled).
func (s *StorageService) Client() ObjectStore {
	return s.client
}

// Bucket returns the configured bucket name.
func (s *StorageService) Bucket() string {
	return s.bucket
}

// JobManifest is the archived record of a finished job.
type JobManifest struct {
	JobID           string           `json:"job_id"`
	UserID          string           `json:"user_id"`
	PostID          string           `json:"post_id,omitempty"`
	Kind            models.JobKind   `json:"kind"`
	Model           string           `json:"model"`
	Prompt          string           `json:"prompt"`
	Status          models.JobStatus `json:"status"`
	CreditsReserved int              `json:"credits_reserved"`
	Refunded        bool             `json:"refunded"`
	ExternalTaskID  string           `json:"external_task_id,omitempty"`
	ResultURLs      []string         `json:"result_urls,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

func manifestKey(jobID string) string {
	return fmt.Sprintf("manifests/%s.json", jobID)
}

// ArchiveJob stores the manifest of a terminal job. No-op when archiving is off.
func (s *StorageService) ArchiveJob(ctx context.Context, job *models.GenerationJob) error {
	if !s.enabled || !s.archive {
		return nil
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("job %s is not terminal", job.ID)
	}

	m := JobManifest{
		JobID:           job.ID,
		UserID:          job.UserID,
		PostID:          job.PostID,
		Kind:            job.Kind,
		Model:           job.Model,
		Prompt:          job.Prompt,
		Status:          job.Status,
		CreditsReserved: job.CreditsReserved,
		Refunded:        job.Status == models.JobStatusFailed && job.CreditsReserved > 0,
		ExternalTaskID:  job.ExternalTaskID,
		ResultURLs:      job.ResultURLs,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		CompletedAt:     job.CompletedAt,
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey(job.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"user-id": job.UserID,
			"status":  string(job.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store manifest: %w", err)
	}

	s.logger.Debug("job manifest archived", "job_id", job.ID, "key", manifestKey(job.ID))
	return nil
}

// GetJobManifest retrieves an archived manifest. Returns nil, nil if none exists.
func (s *StorageService) GetJobManifest(ctx context.Context, jobID string) (*JobManifest, error) {
	if !s.enabled {
		return nil, errors.New("storage not enabled")
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey(jobID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m JobManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
