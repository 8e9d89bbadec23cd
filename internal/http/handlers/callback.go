package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/jmylchreest/genmedia-api/internal/service"
)

const maxCallbackBodySize = 65536 // 64KB

// CallbackProcessor applies a provider callback to a job.
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, jobID string, body []byte) (*service.CallbackResult, error)
}

// CallbackHandler receives provider completion callbacks.
// This is a raw HTTP handler because providers post arbitrary payloads and
// signature verification needs the exact bytes.
type CallbackHandler struct {
	processor CallbackProcessor
	verifier  *svix.Webhook
	logger    *slog.Logger
}

// NewCallbackHandler creates a callback handler. When signingSecret is set,
// deliveries must carry a valid Standard Webhooks signature.
func NewCallbackHandler(processor CallbackProcessor, signingSecret string, logger *slog.Logger) (*CallbackHandler, error) {
	h := &CallbackHandler{
		processor: processor,
		logger:    logger.With("component", "callback-handler"),
	}
	if signingSecret != "" {
		wh, err := svix.NewWebhook(signingSecret)
		if err != nil {
			return nil, err
		}
		h.verifier = wh
	}
	return h, nil
}

type callbackResponse struct {
	Status string `json:"status"`
	Action string `json:"action,omitempty"`
}

// HandleCallback processes POST /callback/{jobId}.
// Any delivery for a known job is acknowledged with 200, including payloads
// that cannot be interpreted, so providers do not retry them forever.
func (h *CallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	log := h.logger.With("job_id", jobID)

	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warn("failed to read callback body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(payload, r.Header); err != nil {
			log.Warn("failed to verify callback signature", "error", err)
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
	}

	result, err := h.processor.HandleCallback(r.Context(), jobID, payload)
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		log.Warn("callback for unknown job")
		writeCallbackJSON(w, http.StatusNotFound, callbackResponse{Status: "unknown job"})
		return
	case err != nil:
		// The provider will retry; the job stays as it was.
		log.Error("failed to process callback", "error", err)
		writeCallbackJSON(w, http.StatusInternalServerError, callbackResponse{Status: "error"})
		return
	}

	writeCallbackJSON(w, http.StatusOK, callbackResponse{Status: "ok", Action: string(result.Action)})
}

func writeCallbackJSON(w http.ResponseWriter, status int, body callbackResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
