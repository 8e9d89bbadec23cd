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

const credentialColumns = `id, provider, name, secret_encrypted, is_active, usage_count,
	last_used_at, created_at, updated_at`

// SQLiteCredentialRepository implements CredentialRepository for SQLite/libsql.
type SQLiteCredentialRepository struct {
	db *sql.DB
}

// NewSQLiteCredentialRepository creates a new credential repository.
func NewSQLiteCredentialRepository(db *sql.DB) *SQLiteCredentialRepository {
	return &SQLiteCredentialRepository{db: db}
}

// Register inserts a credential; an existing (provider, name) pair is left untouched.
func (r *SQLiteCredentialRepository) Register(ctx context.Context, cred *models.APICredential) (bool, error) {
	if cred.ID == "" {
		cred.ID = ulid.Make().String()
	}
	now := time.Now()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO api_credentials (id, provider, name, secret_encrypted, is_active, usage_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(provider, name) DO NOTHING
	`, cred.ID, cred.Provider, cred.Name, cred.SecretEncrypted, boolToInt(cred.IsActive), formatTime(now), formatTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to register credential: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// NextLeastUsed selects and charges a credential in one statement, so two
// concurrent callers can never both see the same lowest count.
func (r *SQLiteCredentialRepository) NextLeastUsed(ctx context.Context, provider string, now time.Time) (*models.APICredential, error) {
	ts := formatTime(now)
	cred, err := scanCredential(r.db.QueryRowContext(ctx, `
		UPDATE api_credentials
		SET usage_count = usage_count + 1, last_used_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM api_credentials
			WHERE provider = ? AND is_active = 1
			ORDER BY usage_count ASC, last_used_at IS NOT NULL, last_used_at ASC, id ASC
			LIMIT 1
		)
		RETURNING `+credentialColumns, ts, ts, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select credential: %w", err)
	}
	return cred, nil
}

// CountActive returns the number of active credentials for a provider.
func (r *SQLiteCredentialRepository) CountActive(ctx context.Context, provider string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_credentials WHERE provider = ? AND is_active = 1`, provider).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return n, nil
}

// GetByID returns the credential, or nil if it does not exist.
func (r *SQLiteCredentialRepository) GetByID(ctx context.Context, id string) (*models.APICredential, error) {
	cred, err := scanCredential(r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM api_credentials WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}

// List returns all credentials grouped by provider.
func (r *SQLiteCredentialRepository) List(ctx context.Context) ([]*models.APICredential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM api_credentials ORDER BY provider, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.APICredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// SetActive toggles a credential.
func (r *SQLiteCredentialRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_credentials SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanCredential(s scanner) (*models.APICredential, error) {
	var cred models.APICredential
	var isActive int
	var lastUsedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&cred.ID, &cred.Provider, &cred.Name, &cred.SecretEncrypted, &isActive,
		&cred.UsageCount, &lastUsedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	cred.IsActive = isActive == 1
	cred.LastUsedAt = parseNullTime(lastUsedAt)
	cred.CreatedAt = parseTime(createdAt)
	cred.UpdatedAt = parseTime(updatedAt)
	return &cred, nil
}
