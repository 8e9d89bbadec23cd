package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeEventHandler applies verified Stripe events.
type StripeEventHandler interface {
	HandleEvent(ctx context.Context, event stripe.Event) error
}

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	secret  string
	billing StripeEventHandler
	logger  *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(secret string, billing StripeEventHandler, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		secret:  secret,
		billing: billing,
		logger:  logger.With("component", "stripe-webhook"),
	}
}

// HandleWebhook processes incoming Stripe webhooks.
// This is a raw HTTP handler since huma doesn't handle raw body verification well.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.secret)
	if err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)
	if err := h.billing.HandleEvent(r.Context(), event); err != nil {
		// Acknowledge anyway; grants are keyed by payment reference and a
		// failed event is visible in the Stripe dashboard for manual replay.
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
	}

	w.WriteHeader(http.StatusOK)
}
