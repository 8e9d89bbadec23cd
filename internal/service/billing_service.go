package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/stripe/stripe-go/v78"
)

// Stripe metadata keys set when the checkout session or subscription is created.
const (
	metadataUserID  = "user_id"
	metadataCredits = "credits"
)

// BillingService turns Stripe payment events into credit grants. Each payment
// is granted once: its Stripe id is the ledger reference.
type BillingService struct {
	ledger *LedgerService
	logger *slog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(ledger *LedgerService, logger *slog.Logger) *BillingService {
	return &BillingService{
		ledger: ledger,
		logger: logger.With("component", "billing"),
	}
}

// HandleEvent routes a verified Stripe event.
func (s *BillingService) HandleEvent(ctx context.Context, event stripe.Event) error {
	s.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to unmarshal checkout session: %w", err)
		}
		return s.handleCheckoutComplete(ctx, &session)

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		return s.handleInvoicePaid(ctx, &invoice)

	default:
		s.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

func (s *BillingService) handleCheckoutComplete(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.PaymentStatus != "" && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logger.Info("checkout session not paid yet", "session_id", session.ID, "payment_status", session.PaymentStatus)
		return nil
	}

	reference := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		reference = session.PaymentIntent.ID
	}
	return s.grantFromMetadata(ctx, session.Metadata, reference, "credit purchase")
}

// handleInvoicePaid grants subscription renewals. One-off checkouts also
// produce invoices; those carry no subscription and are skipped.
func (s *BillingService) handleInvoicePaid(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil
	}
	return s.grantFromMetadata(ctx, invoice.Subscription.Metadata, invoice.ID, "subscription renewal")
}

func (s *BillingService) grantFromMetadata(ctx context.Context, metadata map[string]string, reference, description string) error {
	userID := metadata[metadataUserID]
	if userID == "" {
		s.logger.Warn("payment missing user id", "reference", reference)
		return nil // Not ours; might be a non-user checkout
	}
	credits, err := strconv.Atoi(metadata[metadataCredits])
	if err != nil || credits <= 0 {
		s.logger.Warn("payment missing credit amount", "reference", reference, "user_id", userID)
		return nil
	}

	balance, err := s.ledger.Grant(ctx, userID, credits, reference, description)
	if errors.Is(err, ErrDuplicateGrant) {
		s.logger.Info("duplicate payment ignored", "reference", reference)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}

	s.logger.Info("credits purchased", "user_id", userID, "credits", credits, "reference", reference, "balance", balance)
	return nil
}
