package models

import "time"

// ========================================
// Users
// ========================================

// User holds a user's credit balance. The balance never goes negative.
type User struct {
	ID            string    `json:"id"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ========================================
// Credit Transactions
// ========================================

// CreditTransactionType defines the type of credit movement.
type CreditTransactionType string

const (
	TxTypeReserve CreditTransactionType = "reserve" // Debit before dispatch
	TxTypeRefund  CreditTransactionType = "refund"  // Undo of a reservation
	TxTypeGrant   CreditTransactionType = "grant"   // Purchases, signup and admin grants
)

// CreditTransaction is the audit trail for every balance mutation.
type CreditTransaction struct {
	ID           string                `json:"id"`
	UserID       string                `json:"user_id"`
	Type         CreditTransactionType `json:"type"`
	Amount       int                   `json:"amount"`        // Positive=credit, Negative=debit
	BalanceAfter int                   `json:"balance_after"` // Balance after this transaction

	// Reference is UNIQUE and prevents double-granting the same payment.
	Reference *string `json:"reference,omitempty"`
	JobID     *string `json:"job_id,omitempty"`

	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
