package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/config"
	"github.com/jmylchreest/genmedia-api/internal/crypto"
	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/repository"
)

// Credential is a decrypted provider credential handed to an adapter.
type Credential struct {
	ID       string
	Provider string
	Name     string
	Secret   string
}

// Rotator spreads provider calls across credentials: least used first,
// least recently used on ties. Selection and the usage bump are one atomic
// statement, so concurrent callers never pick from a stale view.
type Rotator struct {
	repo      repository.CredentialRepository
	encryptor *crypto.Encryptor
	now       func() time.Time
	logger    *slog.Logger
}

// NewRotator creates a rotator. A nil encryptor stores secrets as given.
func NewRotator(repo repository.CredentialRepository, encryptor *crypto.Encryptor, logger *slog.Logger) *Rotator {
	return &Rotator{
		repo:      repo,
		encryptor: encryptor,
		now:       time.Now,
		logger:    logger.With("component", "rotator"),
	}
}

// Register adds a credential. Re-registering a known (provider, name) is a no-op.
func (r *Rotator) Register(ctx context.Context, provider, name, secret string) (bool, error) {
	if provider == "" || name == "" || secret == "" {
		return false, errors.New("provider, name and secret are required")
	}
	stored := secret
	if r.encryptor != nil {
		enc, err := r.encryptor.Encrypt(secret)
		if err != nil {
			return false, fmt.Errorf("failed to encrypt credential: %w", err)
		}
		stored = enc
	}

	created, err := r.repo.Register(ctx, &models.APICredential{
		Provider:        provider,
		Name:            name,
		SecretEncrypted: stored,
		IsActive:        true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to register credential: %w", err)
	}
	if created {
		r.logger.Info("credential registered", "provider", provider, "name", name, "secret", crypto.Mask(secret))
	}
	return created, nil
}

// Provision registers credentials from configuration.
func (r *Rotator) Provision(ctx context.Context, creds []config.ProviderCredential) error {
	for _, c := range creds {
		if _, err := r.Register(ctx, c.Provider, c.Name, c.Secret); err != nil {
			return fmt.Errorf("provision %s/%s: %w", c.Provider, c.Name, err)
		}
	}
	return nil
}

// HasActive reports whether Next can currently succeed for provider.
func (r *Rotator) HasActive(ctx context.Context, provider string) (bool, error) {
	n, err := r.repo.CountActive(ctx, provider)
	if err != nil {
		return false, fmt.Errorf("failed to count credentials: %w", err)
	}
	return n > 0, nil
}

// Next selects a credential and records its use.
func (r *Rotator) Next(ctx context.Context, provider string) (*Credential, error) {
	cred, err := r.repo.NextLeastUsed(ctx, provider, r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to select credential: %w", err)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w for provider %s", ErrNoCredentialAvailable, provider)
	}

	secret := cred.SecretEncrypted
	if r.encryptor != nil {
		secret, err = r.encryptor.Decrypt(cred.SecretEncrypted)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credential %s: %w", cred.ID, err)
		}
	}
	r.logger.Debug("credential selected", "provider", provider, "credential_id", cred.ID, "usage_count", cred.UsageCount)

	return &Credential{
		ID:       cred.ID,
		Provider: cred.Provider,
		Name:     cred.Name,
		Secret:   secret,
	}, nil
}

// SetActive enables or disables a credential.
func (r *Rotator) SetActive(ctx context.Context, id string, active bool) (*models.APICredential, error) {
	if err := r.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	r.logger.Info("credential toggled", "credential_id", id, "active", active)
	return r.repo.GetByID(ctx, id)
}

// List returns all credentials. Secrets are never included.
func (r *Rotator) List(ctx context.Context) ([]*models.APICredential, error) {
	return r.repo.List(ctx)
}
