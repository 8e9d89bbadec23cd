package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"unicode/utf8"
)

// Error categories for provider operations.
var (
	// ErrUnrecognizedCallback means no extraction strategy understood a callback body.
	ErrUnrecognizedCallback = errors.New("unrecognized callback payload")

	// ErrNoResult means the provider reported success without any result locator.
	ErrNoResult = errors.New("provider reported success without a result")
)

// Error categories, used for logs and metrics labels.
const (
	CategoryAuth        = "auth"
	CategoryQuota       = "quota"
	CategoryNotFound    = "not_found"
	CategoryRejected    = "rejected"
	CategoryRateLimit   = "rate_limit"
	CategoryServer      = "server_error"
	CategoryTimeout     = "timeout"
	CategoryUnreachable = "unreachable"
	CategoryUnknown     = "unknown"
)

// Error is a submission or poll failure normalized for display on a job.
type Error struct {
	// Original error or provider message
	Err error

	// Provider that produced the error (adapter name)
	Provider string

	// HTTP status, or the envelope code for APIs that always answer 200
	StatusCode int

	Category string

	// UserMessage is stored as the job's error message
	UserMessage string

	// RawMessage is the provider's own text, for logs
	RawMessage string

	Retryable bool
}

func (e *Error) Error() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "provider error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyError maps a failed call to a normalized Error. statusCode is 0 when
// no response was received.
func ClassifyError(provider string, statusCode int, rawMessage string, err error) *Error {
	if err == nil {
		err = errors.New(rawMessage)
	}
	pe := &Error{
		Err:        err,
		Provider:   provider,
		StatusCode: statusCode,
		RawMessage: rawMessage,
	}

	switch {
	case statusCode == 0 && errors.Is(err, context.DeadlineExceeded):
		pe.Category = CategoryTimeout
		pe.UserMessage = "The generation provider did not respond in time."
		pe.Retryable = true
	case statusCode == 0 && isNetError(err):
		pe.Category = CategoryUnreachable
		pe.UserMessage = "The generation provider could not be reached."
		pe.Retryable = true
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		pe.Category = CategoryAuth
		pe.UserMessage = "The generation provider rejected our credentials."
	case statusCode == http.StatusPaymentRequired:
		pe.Category = CategoryQuota
		pe.UserMessage = "The generation provider account is out of quota."
	case statusCode == http.StatusNotFound:
		pe.Category = CategoryNotFound
		pe.UserMessage = "The requested model or feature is not available from the provider."
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		pe.Category = CategoryRejected
		pe.UserMessage = withDetail("The provider rejected the request", rawMessage)
	case statusCode == http.StatusTooManyRequests:
		pe.Category = CategoryRateLimit
		pe.UserMessage = "The generation provider is rate limiting requests. Please try again shortly."
		pe.Retryable = true
	case statusCode >= 500 && statusCode < 600:
		pe.Category = CategoryServer
		pe.UserMessage = "The generation provider had an internal error."
		pe.Retryable = true
	default:
		pe.Category = CategoryUnknown
		pe.UserMessage = withDetail("Generation failed", rawMessage)
	}

	return pe
}

// UserMessage returns the display message for err.
func UserMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.UserMessage
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The generation provider did not respond in time."
	}
	return err.Error()
}

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// maxDetailRunes caps provider text copied into a user message.
const maxDetailRunes = 200

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg + "."
	}
	if utf8.RuneCountInString(detail) > maxDetailRunes {
		detail = string([]rune(detail)[:maxDetailRunes]) + "..."
	}
	return fmt.Sprintf("%s: %s", msg, detail)
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
