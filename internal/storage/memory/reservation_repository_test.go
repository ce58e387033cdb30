package memory_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

func TestReservationRepository_CreateAllAndList(t *testing.T) {
	repo := memory.NewReservationRepository()
	now := time.Now().UTC()

	reservations := []domain.StockReservation{
		{OrderID: "order-1", ProductID: "product-1", VariantID: "variant-1", Qty: 2, Token: "token-1", Status: domain.ReservationStatusReserved, CreatedAt: now},
		{OrderID: "order-1", ProductID: "product-2", VariantID: "variant-2", Qty: 1, Token: "token-2", Status: domain.ReservationStatusReserved, CreatedAt: now.Add(time.Second)},
		{OrderID: "order-2", ProductID: "product-3", VariantID: "variant-3", Qty: 3, Token: "token-3", Status: domain.ReservationStatusReserved, CreatedAt: now},
	}
	if err := repo.CreateAll(reservations); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.ListByOrder("order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(stored))
	}
	if stored[0].Token != "token-1" {
		t.Fatalf("expected oldest reservation first, got %s", stored[0].Token)
	}
	if stored[0].ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestReservationRepository_UpdateStatus(t *testing.T) {
	repo := memory.NewReservationRepository()

	if err := repo.CreateAll([]domain.StockReservation{
		{OrderID: "order-1", ProductID: "product-1", VariantID: "variant-1", Qty: 1, Token: "token-1", Status: domain.ReservationStatusReserved},
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.ListByOrder("order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if err := repo.UpdateStatus(stored[0].ID, domain.ReservationStatusReleaseFailed); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	failed, err := repo.ListReleaseFailed(10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 release_failed reservation, got %d", len(failed))
	}

	if err := repo.UpdateStatus("missing", domain.ReservationStatusReleased); err == nil {
		t.Fatal("expected error for missing reservation")
	}
}
