package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/ttlstore"
)

const idempotencyPending = "pending"

// ErrIdempotencyInProgress is returned when a request with the same key is still running.
var ErrIdempotencyInProgress = errors.New("a request with this idempotency key is in progress")

// IdempotencyGuard remembers which job an Idempotency-Key produced so a
// retried request returns the original job instead of charging again.
type IdempotencyGuard struct {
	store ttlstore.Store
	ttl   time.Duration
}

// NewIdempotencyGuard creates a guard over store.
func NewIdempotencyGuard(store ttlstore.Store, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyGuard{store: store, ttl: ttl}
}

func idempotencyKey(userID, key string) string {
	return "idem:" + userID + ":" + key
}

// Begin claims key for userID. When the key was already used it returns the
// job id it produced; a claim still in flight yields ErrIdempotencyInProgress.
func (g *IdempotencyGuard) Begin(ctx context.Context, userID, key string) (existingJobID string, err error) {
	k := idempotencyKey(userID, key)
	ok, err := g.store.SetNX(ctx, k, idempotencyPending, g.ttl)
	if err != nil {
		return "", fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return "", nil
	}

	v, found, err := g.store.Get(ctx, k)
	if err != nil {
		return "", fmt.Errorf("idempotency lookup: %w", err)
	}
	if !found {
		// Expired between the two calls; claim again.
		return g.Begin(ctx, userID, key)
	}
	if v == idempotencyPending {
		return "", ErrIdempotencyInProgress
	}
	return v, nil
}

// Complete binds the claimed key to jobID.
func (g *IdempotencyGuard) Complete(ctx context.Context, userID, key, jobID string) error {
	ok, err := g.store.CompareAndSet(ctx, idempotencyKey(userID, key), idempotencyPending, jobID, g.ttl)
	if err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	if !ok {
		return fmt.Errorf("idempotency key %q was not pending", key)
	}
	return nil
}

// Abort releases a claim whose request failed, so the client may retry.
func (g *IdempotencyGuard) Abort(ctx context.Context, userID, key string) error {
	return g.store.Delete(ctx, idempotencyKey(userID, key))
}

// Sweep drops expired entries from stores that need it.
func (g *IdempotencyGuard) Sweep(ctx context.Context) (int, error) {
	return g.store.Sweep(ctx)
}
