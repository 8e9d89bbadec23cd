package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/repository"
)

// LedgerService exposes the credit ledger with service-level errors.
type LedgerService struct {
	repo          repository.LedgerRepository
	signupCredits int
	logger        *slog.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(repo repository.LedgerRepository, signupCredits int, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		repo:          repo,
		signupCredits: signupCredits,
		logger:        logger.With("component", "ledger"),
	}
}

// EnsureUser creates the user on first sight with the signup grant. Known
// users are confirmed with a read so authenticated requests do not open a
// write transaction.
func (s *LedgerService) EnsureUser(ctx context.Context, userID string) error {
	_, err := s.repo.GetBalance(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	created, err := s.repo.EnsureUser(ctx, userID, s.signupCredits)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		s.logger.Info("user created", "user_id", userID, "signup_credits", s.signupCredits)
	}
	return nil
}

// Balance returns the user's balance. Unknown users have zero.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return 0, nil
	}
	return balance, err
}

// Reserve debits amount or returns *InsufficientCreditsError without side effects.
func (s *LedgerService) Reserve(ctx context.Context, userID string, amount int, description string) (int, error) {
	balance, ok, err := s.repo.Reserve(ctx, userID, amount, description)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve credits: %w", err)
	}
	if !ok {
		return balance, &InsufficientCreditsError{Required: amount, Available: balance}
	}
	return balance, nil
}

// Refund returns credits outside of job finalization, such as when a job row
// could not be created after its reservation.
func (s *LedgerService) Refund(ctx context.Context, userID string, amount int, jobID, description string) (int, error) {
	if amount <= 0 {
		return s.Balance(ctx, userID)
	}
	balance, err := s.repo.Refund(ctx, userID, amount, jobID, description)
	if err != nil {
		return 0, fmt.Errorf("failed to refund credits: %w", err)
	}
	return balance, nil
}

// Grant issues credits. A non-empty reference is applied at most once.
func (s *LedgerService) Grant(ctx context.Context, userID string, amount int, reference, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	if err := s.EnsureUser(ctx, userID); err != nil {
		return 0, err
	}
	balance, err := s.repo.Grant(ctx, userID, amount, reference, description)
	if errors.Is(err, repository.ErrDuplicateReference) {
		return 0, ErrDuplicateGrant
	}
	if err != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}
	s.logger.Info("credits granted", "user_id", userID, "amount", amount, "reference", reference, "balance", balance)
	return balance, nil
}

// Transactions returns the user's ledger entries, newest first.
func (s *LedgerService) Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}
