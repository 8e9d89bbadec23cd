package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

// SQLiteLedgerRepository implements LedgerRepository for SQLite/libsql.
type SQLiteLedgerRepository struct {
	db *sql.DB
}

// NewSQLiteLedgerRepository creates a new ledger repository.
func NewSQLiteLedgerRepository(db *sql.DB) *SQLiteLedgerRepository {
	return &SQLiteLedgerRepository{db: db}
}

// EnsureUser creates the user if missing, applying the initial grant.
func (r *SQLiteLedgerRepository) EnsureUser(ctx context.Context, userID string, initialCredits int) (bool, error) {
	if initialCredits < 0 {
		initialCredits = 0
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, credit_balance, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, userID, initialCredits, formatTime(now), formatTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	if initialCredits > 0 {
		if err := insertTransaction(ctx, tx, &models.CreditTransaction{
			UserID:       userID,
			Type:         models.TxTypeGrant,
			Amount:       initialCredits,
			BalanceAfter: initialCredits,
			Description:  "signup credits",
			CreatedAt:    now,
		}); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// GetBalance returns the user's current balance.
func (r *SQLiteLedgerRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.db.QueryRowContext(ctx, `SELECT credit_balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Reserve is a single conditional decrement; there is no read before the write.
func (r *SQLiteLedgerRepository) Reserve(ctx context.Context, userID string, amount int, description string) (int, bool, error) {
	if amount < 0 {
		return 0, false, fmt.Errorf("reserve amount must be non-negative, got %d", amount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	var balance int
	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET credit_balance = credit_balance - ?, updated_at = ?
		WHERE id = ? AND credit_balance >= ?
		RETURNING credit_balance
	`, amount, formatTime(now), userID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// Release the transaction before reading so a single-connection pool is free.
		_ = tx.Rollback()
		committed = true

		current, getErr := r.GetBalance(ctx, userID)
		if errors.Is(getErr, ErrUserNotFound) {
			return 0, false, nil
		}
		return current, false, getErr
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to reserve credits: %w", err)
	}

	if err := insertTransaction(ctx, tx, &models.CreditTransaction{
		UserID:       userID,
		Type:         models.TxTypeReserve,
		Amount:       -amount,
		BalanceAfter: balance,
		Description:  description,
		CreatedAt:    now,
	}); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return balance, true, nil
}

// Refund returns credits to the user. It always succeeds for a known user.
func (r *SQLiteLedgerRepository) Refund(ctx context.Context, userID string, amount int, jobID, description string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	balance, err := creditUser(ctx, tx, userID, amount, models.TxTypeRefund, jobID, "", description)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// Grant issues credits. Reusing a non-empty reference returns ErrDuplicateReference.
func (r *SQLiteLedgerRepository) Grant(ctx context.Context, userID string, amount int, reference, description string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	balance, err := creditUser(ctx, tx, userID, amount, models.TxTypeGrant, "", reference, description)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// ListTransactions returns the user's ledger entries, newest first.
func (r *SQLiteLedgerRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_after, reference, job_id, description, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		var txType, createdAt string
		var reference, jobID sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &txType, &t.Amount, &t.BalanceAfter, &reference, &jobID, &t.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = models.CreditTransactionType(txType)
		t.CreatedAt = parseTime(createdAt)
		if reference.Valid {
			t.Reference = &reference.String
		}
		if jobID.Valid {
			t.JobID = &jobID.String
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// creditUser increments the balance and records the movement on q.
func creditUser(ctx context.Context, q dbtx, userID string, amount int, txType models.CreditTransactionType, jobID, reference, description string) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit amount must be non-negative, got %d", amount)
	}

	now := time.Now()
	var balance int
	err := q.QueryRowContext(ctx, `
		UPDATE users
		SET credit_balance = credit_balance + ?, updated_at = ?
		WHERE id = ?
		RETURNING credit_balance
	`, amount, formatTime(now), userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit user: %w", err)
	}

	entry := &models.CreditTransaction{
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balance,
		Description:  description,
		CreatedAt:    now,
	}
	if jobID != "" {
		entry.JobID = &jobID
	}
	if reference != "" {
		entry.Reference = &reference
	}
	if err := insertTransaction(ctx, q, entry); err != nil {
		return 0, err
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, q dbtx, t *models.CreditTransaction) error {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	var reference, jobID sql.NullString
	if t.Reference != nil {
		reference = nullString(*t.Reference)
	}
	if t.JobID != nil {
		jobID = nullString(*t.JobID)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, type, amount, balance_after, reference, job_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Type, t.Amount, t.BalanceAfter, reference, jobID, t.Description, formatTime(t.CreatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return nil
}
