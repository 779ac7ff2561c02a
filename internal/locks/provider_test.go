package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goredis "github.com/redis/go-redis/v9"

	"github.com/finbase-io/wallet-engine/pkg/redis"
)

func newRedisProvider(t *testing.T) (*RedisProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	provider, err := NewRedisProvider(client, redis.IsNil)
	require.NoError(t, err)
	return provider, mr
}

func TestRedisProvider_AcquireAndRelease(t *testing.T) {
	provider, _ := newRedisProvider(t)
	ctx := context.Background()

	lease, err := provider.TryAcquire(ctx, "wallet:wallet_lock:1", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.NotEmpty(t, lease.Owner)

	// Second acquisition is refused while the lease is live.
	contended, err := provider.TryAcquire(ctx, "wallet:wallet_lock:1", 30*time.Second)
	require.NoError(t, err)
	assert.Nil(t, contended)

	require.NoError(t, provider.Release(ctx, lease))

	again, err := provider.TryAcquire(ctx, "wallet:wallet_lock:1", 30*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestRedisProvider_TTLExpiryFreesLock(t *testing.T) {
	provider, mr := newRedisProvider(t)
	ctx := context.Background()

	lease, err := provider.TryAcquire(ctx, "wallet:wallet_lock:2", time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)

	mr.FastForward(2 * time.Second)

	taken, err := provider.TryAcquire(ctx, "wallet:wallet_lock:2", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, taken)
}

func TestRedisProvider_ReleaseIgnoresStolenLock(t *testing.T) {
	provider, mr := newRedisProvider(t)
	ctx := context.Background()

	lease, err := provider.TryAcquire(ctx, "wallet:wallet_lock:3", time.Second)
	require.NoError(t, err)

	// The TTL lapses and another owner takes the lock.
	mr.FastForward(2 * time.Second)
	stolen, err := provider.TryAcquire(ctx, "wallet:wallet_lock:3", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, stolen)

	// Releasing the stale lease must not free the new owner's lock.
	require.NoError(t, provider.Release(ctx, lease))
	contended, err := provider.TryAcquire(ctx, "wallet:wallet_lock:3", 30*time.Second)
	require.NoError(t, err)
	assert.Nil(t, contended)
}

func TestRedisProvider_ValidatesInput(t *testing.T) {
	provider, _ := newRedisProvider(t)
	ctx := context.Background()

	_, err := provider.TryAcquire(ctx, "", time.Second)
	require.Error(t, err)

	_, err = provider.TryAcquire(ctx, "wallet:wallet_lock:4", 0)
	require.Error(t, err)

	assert.NoError(t, provider.Release(ctx, nil))
}

func TestMemoryProvider_AcquireAndRelease(t *testing.T) {
	provider := NewMemoryProvider()
	ctx := context.Background()

	lease, err := provider.TryAcquire(ctx, "wallet:wallet_lock:1", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)

	contended, err := provider.TryAcquire(ctx, "wallet:wallet_lock:1", 30*time.Second)
	require.NoError(t, err)
	assert.Nil(t, contended)

	require.NoError(t, provider.Release(ctx, lease))

	again, err := provider.TryAcquire(ctx, "wallet:wallet_lock:1", 30*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestMemoryProvider_TTLExpiry(t *testing.T) {
	provider := NewMemoryProvider()
	current := time.Now()
	provider.now = func() time.Time { return current }
	ctx := context.Background()

	lease, err := provider.TryAcquire(ctx, "wallet:wallet_lock:9", time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)

	current = current.Add(2 * time.Second)

	taken, err := provider.TryAcquire(ctx, "wallet:wallet_lock:9", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, taken)
}
