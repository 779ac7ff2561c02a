package locks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/db/models"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/logger"
	"github.com/finbase-io/wallet-engine/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletSource interface {
	LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Wallet, error)
}

type keyBuilder interface {
	WalletLockKey(walletID uint) string
}

// Coordinator serializes wallet mutations. Callers receive freshly re-read,
// row-locked wallet rows inside an open storage transaction; the named lock
// closes contention fast while the row lock guarantees atomicity even if the
// named lock is ever bypassed.
type Coordinator struct {
	provider Provider
	tx       txRunner
	wallets  walletSource
	keys     keyBuilder
	cfg      config.LockConfig
	logg     *logger.Logger
	metrics  *metrics.TransactionMetrics

	// sleep is swappable so tests do not wait out real backoff delays.
	sleep func(time.Duration)
}

// NewCoordinator wires a lock coordinator.
func NewCoordinator(provider Provider, tx txRunner, wallets walletSource, keys keyBuilder, cfg config.LockConfig, logg *logger.Logger, m *metrics.TransactionMetrics) (*Coordinator, error) {
	if provider == nil {
		return nil, fmt.Errorf("lock provider required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet source required")
	}
	if keys == nil {
		return nil, fmt.Errorf("key builder required")
	}
	if cfg.WalletLockTTL <= 0 {
		cfg.WalletLockTTL = 30 * time.Second
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Coordinator{
		provider: provider,
		tx:       tx,
		wallets:  wallets,
		keys:     keys,
		cfg:      cfg,
		logg:     logg,
		metrics:  m,
		sleep:    time.Sleep,
	}, nil
}

// WithWalletLock runs fn while holding the named lock and row lock for one wallet.
func (c *Coordinator) WithWalletLock(ctx context.Context, walletID uint, fn func(tx *gorm.DB, wallet *models.Wallet) error) error {
	return c.WithWalletLocks(ctx, []uint{walletID}, func(tx *gorm.DB, wallets map[uint]*models.Wallet) error {
		return fn(tx, wallets[walletID])
	})
}

// WithWalletLocks acquires named locks for every wallet id, always in
// ascending id order so opposite-direction transfers cannot deadlock, then
// opens a storage transaction, row-locks the wallets in the same order and
// runs fn. On partial acquisition every held lock is released before the
// retry delay so other participants are not starved.
func (c *Coordinator) WithWalletLocks(ctx context.Context, walletIDs []uint, fn func(tx *gorm.DB, wallets map[uint]*models.Wallet) error) error {
	if len(walletIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one wallet id required")
	}

	sorted := dedupeSorted(walletIDs)

	for attempt := 1; ; attempt++ {
		leases, acquired, err := c.tryAcquireAll(ctx, sorted)
		if err != nil {
			c.releaseAll(ctx, leases)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring wallet locks")
		}
		if acquired {
			err := c.runLocked(ctx, sorted, fn)
			c.releaseAll(ctx, leases)
			return err
		}

		c.releaseAll(ctx, leases)
		if attempt >= c.cfg.MaxRetryAttempts {
			c.metrics.IncLockExhausted("wallet")
			return pkgerrors.New(pkgerrors.CodeWalletLocked,
				"one or more wallets are currently processing other transactions")
		}
		c.metrics.IncLockRetry("wallet")
		c.sleep(c.cfg.RetryDelay)
	}
}

func (c *Coordinator) tryAcquireAll(ctx context.Context, walletIDs []uint) ([]*Lease, bool, error) {
	leases := make([]*Lease, 0, len(walletIDs))
	for _, id := range walletIDs {
		lease, err := c.provider.TryAcquire(ctx, c.keys.WalletLockKey(id), c.cfg.WalletLockTTL)
		if err != nil {
			return leases, false, err
		}
		if lease == nil {
			return leases, false, nil
		}
		leases = append(leases, lease)
	}
	return leases, true, nil
}

func (c *Coordinator) runLocked(ctx context.Context, walletIDs []uint, fn func(tx *gorm.DB, wallets map[uint]*models.Wallet) error) error {
	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked := make(map[uint]*models.Wallet, len(walletIDs))
		for _, id := range walletIDs {
			wallet, err := c.wallets.LockForUpdate(ctx, tx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "row-locking wallet")
			}
			if wallet == nil {
				return pkgerrors.New(pkgerrors.CodeWalletNotFound, fmt.Sprintf("wallet %d not found", id))
			}
			locked[id] = wallet
		}
		return fn(tx, locked)
	})
}

func (c *Coordinator) releaseAll(ctx context.Context, leases []*Lease) {
	for _, lease := range leases {
		if err := c.provider.Release(ctx, lease); err != nil && c.logg != nil {
			c.logg.Warn(ctx, fmt.Sprintf("failed to release lock %s: %v", lease.Name, err))
		}
	}
}

func dedupeSorted(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
