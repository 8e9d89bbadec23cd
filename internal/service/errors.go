package service

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/repository"
)

var (
	// ErrUnsupportedModel is returned when no route serves the requested model and kind.
	ErrUnsupportedModel = catalog.ErrUnsupportedModel

	// ErrNoCredentialAvailable means no active provider credential exists.
	// It is a configuration problem and is not retried.
	ErrNoCredentialAvailable = errors.New("no provider credential available")

	// ErrJobNotFound is returned for unknown jobs and for jobs the caller does not own.
	ErrJobNotFound = repository.ErrJobNotFound

	// ErrPostNotFound is returned for unknown posts and for posts the caller does not own.
	ErrPostNotFound = errors.New("post not found")

	// ErrDuplicateGrant indicates a grant reference was already applied.
	ErrDuplicateGrant = errors.New("duplicate grant - already processed")

	// ErrEmptyPost is returned when a post requests no media.
	ErrEmptyPost = errors.New("post requires at least one media job")

	// ErrNoJobsCreated means every job of a post failed to persist. The
	// reservation has been refunded.
	ErrNoJobsCreated = errors.New("no media jobs could be created")
)

// InvalidParametersError is returned when a model rejects its inputs.
type InvalidParametersError = catalog.InvalidParametersError

// InsufficientCreditsError is returned when a reservation exceeds the balance.
// Nothing was reserved and no job exists.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// IsInsufficientCredits reports whether err is an InsufficientCreditsError.
func IsInsufficientCredits(err error) bool {
	var ice *InsufficientCreditsError
	return errors.As(err, &ice)
}
