// Package locks implements the two-tier wallet locking protocol: named,
// TTL-bounded mutual-exclusion locks for fast-fail contention handling, and
// row-level storage locks for correctness inside the atomic section.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease represents ownership of a named lock. The owner token guards against
// releasing a lock that expired and was re-acquired by someone else.
type Lease struct {
	Name  string
	Owner string
}

// Provider hands out named TTL-bounded locks. TryAcquire never blocks: it
// returns a nil lease when the lock is held elsewhere.
type Provider interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}

// redisStore defines the operations used by RedisProvider.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisProvider implements Provider using Redis SETNX + TTL.
type RedisProvider struct {
	client redisStore
	isNil  func(error) bool
}

// NewRedisProvider constructs a Redis-backed lock provider. isNil recognizes
// the client's key-missing sentinel.
func NewRedisProvider(client redisStore, isNil func(error) bool) (*RedisProvider, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock provider")
	}
	if isNil == nil {
		isNil = func(error) bool { return false }
	}
	return &RedisProvider{client: client, isNil: isNil}, nil
}

// TryAcquire tries to own the named lock for the given TTL.
func (p *RedisProvider) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	owner := uuid.NewString()
	ok, err := p.client.SetNX(ctx, name, owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{Name: name, Owner: owner}, nil
}

// Release frees the lock only if the owner token still matches.
func (p *RedisProvider) Release(ctx context.Context, lease *Lease) error {
	if lease == nil || lease.Owner == "" {
		return nil
	}
	value, err := p.client.Get(ctx, lease.Name)
	if err != nil {
		if p.isNil(err) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != lease.Owner {
		return nil
	}
	if err := p.client.Del(ctx, lease.Name); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

type memoryEntry struct {
	owner     string
	expiresAt time.Time
}

// MemoryProvider is an in-process Provider with TTL expiry. It backs tests
// and single-node deployments without Redis.
type MemoryProvider struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryProvider constructs an in-memory lock provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		locks: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// TryAcquire grants the lock unless a live holder exists.
func (p *MemoryProvider) TryAcquire(_ context.Context, name string, ttl time.Duration) (*Lease, error) {
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.locks[name]; ok && p.now().Before(entry.expiresAt) {
		return nil, nil
	}
	owner := uuid.NewString()
	p.locks[name] = memoryEntry{owner: owner, expiresAt: p.now().Add(ttl)}
	return &Lease{Name: name, Owner: owner}, nil
}

// Release frees the lock when the lease still owns it.
func (p *MemoryProvider) Release(_ context.Context, lease *Lease) error {
	if lease == nil || lease.Owner == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.locks[lease.Name]; ok && entry.owner == lease.Owner {
		delete(p.locks, lease.Name)
	}
	return nil
}
