package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/genmedia-api/internal/service"
)

// InsufficientCreditsBody is the 402 response. It implements huma.StatusError
// so the amounts are serialized as top-level fields.
type InsufficientCreditsBody struct {
	Message   string `json:"error"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func (e *InsufficientCreditsBody) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *InsufficientCreditsBody) GetStatus() int { return http.StatusPaymentRequired }

var _ huma.StatusError = (*InsufficientCreditsBody)(nil)

// toHTTPError maps service errors onto API errors. Unknown errors are
// logged and become a 500 without leaking details.
func toHTTPError(err error, logger *slog.Logger) error {
	var ice *service.InsufficientCreditsError
	if errors.As(err, &ice) {
		return &InsufficientCreditsBody{
			Message:   "insufficient credits",
			Required:  ice.Required,
			Available: ice.Available,
		}
	}

	var ipe *service.InvalidParametersError
	if errors.As(err, &ipe) {
		return huma.Error400BadRequest(ipe.Error(), &huma.ErrorDetail{
			Message:  ipe.Reason,
			Location: "body." + ipe.Field,
		})
	}

	switch {
	case errors.Is(err, service.ErrUnsupportedModel):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrEmptyPost):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrJobNotFound):
		return huma.Error404NotFound("generation not found")
	case errors.Is(err, service.ErrPostNotFound):
		return huma.Error404NotFound("post not found")
	case errors.Is(err, service.ErrIdempotencyInProgress):
		return huma.Error409Conflict("a request with this idempotency key is still in progress")
	case errors.Is(err, service.ErrNoCredentialAvailable):
		return huma.Error503ServiceUnavailable("no provider credential is configured for this model")
	}

	if logger != nil {
		logger.Error("request failed", "error", err)
	}
	return huma.Error500InternalServerError("internal error")
}
