// Package models defines the domain models for the application.
// The UserID fields reference the bearer token subject.
package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the status of a generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobKind is the kind of media a job generates.
type JobKind string

const (
	JobKindVideo       JobKind = "video"
	JobKindImage       JobKind = "image"
	JobKindMusic       JobKind = "music"
	JobKindAudio       JobKind = "audio"
	JobKindSpeech      JobKind = "speech"
	JobKindSoundEffect JobKind = "sound_effect"
)

// JobKinds lists every supported kind, in display order.
var JobKinds = []JobKind{
	JobKindVideo,
	JobKindImage,
	JobKindMusic,
	JobKindAudio,
	JobKindSpeech,
	JobKindSoundEffect,
}

// IsValid reports whether k is a known job kind.
func (k JobKind) IsValid() bool {
	for _, known := range JobKinds {
		if k == known {
			return true
		}
	}
	return false
}

// GenerationJob is one requested unit of generation work.
// CreditsReserved is fixed at creation and is the exact amount refunded on failure.
type GenerationJob struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Kind            JobKind         `json:"kind"`
	Model           string          `json:"model"`
	Prompt          string          `json:"prompt"`
	ReferenceInputs []string        `json:"reference_inputs,omitempty"`
	Parameters      json.RawMessage `json:"parameters,omitempty"`
	Status          JobStatus       `json:"status"`
	CreditsReserved int             `json:"credits_reserved"`
	ExternalTaskID  string          `json:"external_task_id,omitempty"` // Empty until dispatch succeeds
	ResultURLs      []string        `json:"result_urls,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Attempts        int             `json:"attempts"`
	PostID          string          `json:"post_id,omitempty"` // Owning scheduled post, if any
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// ResultURL returns the first result locator, or empty.
func (j *GenerationJob) ResultURL() string {
	if len(j.ResultURLs) == 0 {
		return ""
	}
	return j.ResultURLs[0]
}

// MediaStatus is the aggregate generation status of a scheduled post.
type MediaStatus string

const (
	MediaStatusGenerating MediaStatus = "generating"
	MediaStatusCompleted  MediaStatus = "completed"
	MediaStatusFailed     MediaStatus = "failed"
	MediaStatusPartial    MediaStatus = "partial"
)

// PublishStatus tracks hand-off of a post to the social publisher.
type PublishStatus string

const (
	PublishStatusDraft      PublishStatus = "draft"
	PublishStatusPublishing PublishStatus = "publishing"
	PublishStatusSubmitted  PublishStatus = "submitted"
	PublishStatusFailed     PublishStatus = "failed"
)

// ScheduledPost is a social post whose media is produced by generation jobs.
type ScheduledPost struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"user_id"`
	Caption            string        `json:"caption"`
	Platforms          []string      `json:"platforms"`
	ScheduledAt        *time.Time    `json:"scheduled_at,omitempty"`
	MediaStatus        MediaStatus   `json:"media_status"`
	MediaURLs          []string      `json:"media_urls,omitempty"`
	MediaTerminalCount int           `json:"-"` // Number of terminal jobs reflected in MediaStatus
	AutoPublish        bool          `json:"auto_publish"`
	PublishStatus      PublishStatus `json:"publish_status"`
	ExternalPostID     string        `json:"external_post_id,omitempty"`
	PublishError       string        `json:"publish_error,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// APICredential is an outbound provider credential managed by the rotator.
type APICredential struct {
	ID              string     `json:"id"`
	Provider        string     `json:"provider"`
	Name            string     `json:"name"`
	SecretEncrypted string     `json:"-"`
	IsActive        bool       `json:"is_active"`
	UsageCount      int64      `json:"usage_count"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
