// Package idempotency deduplicates client operation requests. Keys are
// client-generated UUIDs and are never reused for different payloads by
// contract, so the guard checks identity only, not payload hashes.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/finbase-io/wallet-engine/internal/locks"
	"github.com/finbase-io/wallet-engine/pkg/db/models"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/logger"
)

const defaultLockTTL = 100 * time.Second

// TransactionLookup finds transactions by their client-supplied key.
type TransactionLookup interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
}

type keyBuilder interface {
	IdempotencyLockKey(key string) string
}

// Guard admits an operation at most once per idempotency key. Two concurrent
// requests bearing the same key race on a short-lived named lock: the loser
// fails fast with ConcurrentInProgress instead of queueing.
type Guard struct {
	transactions TransactionLookup
	provider     locks.Provider
	keys         keyBuilder
	ttl          time.Duration
	logg         *logger.Logger
}

// NewGuard wires an idempotency guard.
func NewGuard(transactions TransactionLookup, provider locks.Provider, keys keyBuilder, ttl time.Duration, logg *logger.Logger) (*Guard, error) {
	if transactions == nil {
		return nil, fmt.Errorf("transaction lookup required")
	}
	if provider == nil {
		return nil, fmt.Errorf("lock provider required")
	}
	if keys == nil {
		return nil, fmt.Errorf("key builder required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Guard{transactions: transactions, provider: provider, keys: keys, ttl: ttl, logg: logg}, nil
}

// Admit returns nil when the key has never been used and no concurrent
// request is mid-flight with the same key.
func (g *Guard) Admit(ctx context.Context, key string) error {
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}

	existing, err := g.transactions.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "looking up idempotency key")
	}
	if existing != nil {
		return pkgerrors.New(pkgerrors.CodeDuplicate, "duplicate transaction").
			WithDetails(map[string]any{"transaction_id": existing.TransactionID})
	}

	lease, err := g.provider.TryAcquire(ctx, g.keys.IdempotencyLockKey(key), g.ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring idempotency lock")
	}
	if lease == nil {
		return pkgerrors.New(pkgerrors.CodeConcurrentInProgress,
			"another request with the same idempotency key is being processed")
	}
	defer func() {
		if err := g.provider.Release(ctx, lease); err != nil && g.logg != nil {
			g.logg.Warn(ctx, fmt.Sprintf("failed to release idempotency lock: %v", err))
		}
	}()

	// Double-check under the lock: a racer may have committed between the
	// first lookup and the acquisition.
	existing, err = g.transactions.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "re-checking idempotency key")
	}
	if existing != nil {
		return pkgerrors.New(pkgerrors.CodeDuplicate, "duplicate transaction").
			WithDetails(map[string]any{"transaction_id": existing.TransactionID})
	}
	return nil
}
