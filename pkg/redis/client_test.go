package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromClient(raw), mr
}

func TestSetNXLifecycle(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	ok, err := client.SetNX(ctx, "k", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if !ok {
		t.Fatal("first setnx should succeed")
	}

	ok, err = client.SetNX(ctx, "k", "owner-2", time.Minute)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if ok {
		t.Fatal("second setnx should be rejected")
	}

	got, err := client.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "owner-1" {
		t.Fatalf("expected owner-1, got %q", got)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := client.Get(ctx, "k"); !IsNil(err) {
		t.Fatalf("expected key to expire, got %v", err)
	}
}

func TestDelAndIsNil(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	if err := client.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "k"); !IsNil(err) {
		t.Fatalf("expected nil sentinel after delete, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.WalletLockKey(42); got != "wallet:wallet_lock:42" {
		t.Fatalf("unexpected wallet lock key %s", got)
	}
	if got := client.IdempotencyLockKey("abc"); got != "wallet:idempotency:abc" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
}
