package app

import (
	"context"
	"testing"
)

func TestNewDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Orders == nil || deps.Payments == nil || deps.Reservations == nil {
		t.Fatal("expected repositories to be initialized")
	}
	if deps.Outbox == nil || deps.Idempotency == nil || deps.Locker == nil {
		t.Fatal("expected outbox, idempotency and locker to be initialized")
	}
	if deps.Stock == nil || deps.Gateway == nil {
		t.Fatal("expected stock client and payment gateway to be initialized")
	}
	if deps.Store() != nil {
		t.Error("expected no postgres store for memory driver")
	}
	if deps.Redis() != nil {
		t.Error("expected no redis client when RedisAddr is empty")
	}
}

func TestNewDependencies_UnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	if _, err := NewDependencies(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}
