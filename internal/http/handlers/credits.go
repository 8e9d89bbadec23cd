package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

// CreditReader exposes a user's balance and history.
type CreditReader interface {
	BalanceReader
	Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)
}

// CreditsHandler serves the caller's credit account.
type CreditsHandler struct {
	ledger CreditReader
	logger *slog.Logger
}

// NewCreditsHandler creates a credits handler.
func NewCreditsHandler(ledger CreditReader, logger *slog.Logger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger, logger: logger.With("component", "credits-handler")}
}

// GetCreditsInput pages the transaction history.
type GetCreditsInput struct {
	Limit  int `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Transactions to return"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Transactions to skip"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	JobID        string    `json:"job_id,omitempty"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetCreditsOutput is the balance and recent activity.
type GetCreditsOutput struct {
	Body struct {
		Balance      int                   `json:"balance"`
		Transactions []TransactionResponse `json:"transactions"`
	}
}

// GetCredits returns the caller's balance and recent transactions.
func (h *CreditsHandler) GetCredits(ctx context.Context, input *GetCreditsInput) (*GetCreditsOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}
	txs, err := h.ledger.Transactions(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, toHTTPError(err, h.logger)
	}

	out := &GetCreditsOutput{}
	out.Body.Balance = balance
	out.Body.Transactions = make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp := TransactionResponse{
			ID:           tx.ID,
			Type:         string(tx.Type),
			Amount:       tx.Amount,
			BalanceAfter: tx.BalanceAfter,
			Description:  tx.Description,
			CreatedAt:    tx.CreatedAt,
		}
		if tx.JobID != nil {
			resp.JobID = *tx.JobID
		}
		out.Body.Transactions = append(out.Body.Transactions, resp)
	}
	return out, nil
}
