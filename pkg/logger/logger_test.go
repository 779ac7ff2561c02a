package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithWalletID(ctx, 42)

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"wallet_id\"")) {
		t.Fatalf("expected wallet_id to be preserved; entry=%s", buf.String())
	}
}

func TestLoggerTransactionFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithTransactionID(context.Background(), "tx-abc")
	ctx = log.WithIdempotencyKey(ctx, "key-1")
	log.Info(ctx, "transaction.completed")

	if !bytes.Contains(buf.Bytes(), []byte("\"transaction_id\":\"tx-abc\"")) {
		t.Fatalf("expected transaction_id field; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"idempotency_key\":\"key-1\"")) {
		t.Fatalf("expected idempotency_key field; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl.String() != "info" {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl.String() != "info" {
		t.Fatalf("invalid level should fall back to info, got %v", lvl)
	}
}
