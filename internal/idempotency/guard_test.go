package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbase-io/wallet-engine/internal/locks"
	"github.com/finbase-io/wallet-engine/pkg/db/models"
	pkgerrors "github.com/finbase-io/wallet-engine/pkg/errors"
	"github.com/finbase-io/wallet-engine/pkg/redis"
)

type fakeLookup struct {
	mu           sync.Mutex
	transactions map[string]*models.Transaction
	err          error
	// onLookup runs after each lookup, letting tests interleave writes
	// between the first check and the double-check.
	onLookup func()
}

func (f *fakeLookup) FindByIdempotencyKey(_ context.Context, key string) (*models.Transaction, error) {
	f.mu.Lock()
	transaction := f.transactions[key]
	f.mu.Unlock()
	if f.onLookup != nil {
		f.onLookup()
	}
	return transaction, f.err
}

func (f *fakeLookup) put(key string, transaction *models.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transactions == nil {
		f.transactions = map[string]*models.Transaction{}
	}
	f.transactions[key] = transaction
}

type fakeKeys struct{}

func (fakeKeys) IdempotencyLockKey(key string) string {
	return "wallet:idempotency:" + key
}

func newGuard(t *testing.T, lookup *fakeLookup, provider locks.Provider) *Guard {
	t.Helper()
	guard, err := NewGuard(lookup, provider, fakeKeys{}, time.Minute, nil)
	require.NoError(t, err)
	return guard
}

func TestAdmit_FreshKey(t *testing.T) {
	guard := newGuard(t, &fakeLookup{}, locks.NewMemoryProvider())

	require.NoError(t, guard.Admit(context.Background(), "key-1"))

	// The named lock is released once admission completes, so a retry with
	// a still-unused key is admitted again.
	require.NoError(t, guard.Admit(context.Background(), "key-1"))
}

func TestAdmit_EmptyKey(t *testing.T) {
	guard := newGuard(t, &fakeLookup{}, locks.NewMemoryProvider())

	err := guard.Admit(context.Background(), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAdmit_KnownKeyIsDuplicate(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.put("key-used", &models.Transaction{TransactionID: "tx-1"})
	guard := newGuard(t, lookup, locks.NewMemoryProvider())

	err := guard.Admit(context.Background(), "key-used")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicate))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tx-1", details["transaction_id"])
}

func TestAdmit_HeldLockMeansConcurrent(t *testing.T) {
	provider := locks.NewMemoryProvider()
	guard := newGuard(t, &fakeLookup{}, provider)
	ctx := context.Background()

	_, err := provider.TryAcquire(ctx, "wallet:idempotency:key-busy", time.Minute)
	require.NoError(t, err)

	err = guard.Admit(ctx, "key-busy")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrentInProgress))
}

func TestAdmit_DoubleCheckCatchesRacer(t *testing.T) {
	lookup := &fakeLookup{}
	var calls int
	lookup.onLookup = func() {
		calls++
		if calls == 1 {
			// A racer commits between the first lookup and the lock.
			lookup.put("key-race", &models.Transaction{TransactionID: "tx-racer"})
		}
	}
	guard := newGuard(t, lookup, locks.NewMemoryProvider())

	err := guard.Admit(context.Background(), "key-race")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicate))
}

func TestAdmit_LookupFailure(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("connection reset")}
	guard := newGuard(t, lookup, locks.NewMemoryProvider())

	err := guard.Admit(context.Background(), "key-down")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOperationFailed))
}

func TestAdmit_ConcurrentCallersOneWinner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	provider, err := locks.NewRedisProvider(client, redis.IsNil)
	require.NoError(t, err)

	lookup := &fakeLookup{}
	lookup.onLookup = func() {
		// Stretch the admitted caller's critical section so the others
		// observe contention.
		time.Sleep(5 * time.Millisecond)
	}
	guard := newGuard(t, lookup, provider)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = guard.Admit(context.Background(), "key-herd")
		}(i)
	}
	wg.Wait()

	var admitted, concurrent int
	for _, err := range results {
		switch {
		case err == nil:
			admitted++
		case pkgerrors.IsCode(err, pkgerrors.CodeConcurrentInProgress):
			concurrent++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.GreaterOrEqual(t, admitted, 1)
	assert.Equal(t, callers, admitted+concurrent)
}

func TestNewGuard_Validation(t *testing.T) {
	provider := locks.NewMemoryProvider()

	_, err := NewGuard(nil, provider, fakeKeys{}, time.Minute, nil)
	require.Error(t, err)

	_, err = NewGuard(&fakeLookup{}, nil, fakeKeys{}, time.Minute, nil)
	require.Error(t, err)

	_, err = NewGuard(&fakeLookup{}, provider, nil, time.Minute, nil)
	require.Error(t, err)

	guard, err := NewGuard(&fakeLookup{}, provider, fakeKeys{}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, guard.ttl)
}
