package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestReservationRepositoryPostgres_CreateAllAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewReservationRepository(store)

	orderID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	reservations := []domain.StockReservation{
		{
			OrderID:   orderID,
			ProductID: "prod-1",
			VariantID: "var-1",
			Qty:       2,
			Token:     "token-1",
			Status:    domain.ReservationStatusReserved,
			ExpiresAt: now.Add(time.Hour),
			CreatedAt: now,
		},
		{
			OrderID:   orderID,
			ProductID: "prod-2",
			Qty:       1,
			Token:     "token-2",
			Status:    domain.ReservationStatusReserved,
			CreatedAt: now.Add(time.Millisecond),
		},
	}

	if err := repo.CreateAll(reservations); err != nil {
		t.Fatalf("create reservations: %v", err)
	}

	got, err := repo.ListByOrder(orderID)
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected count: got=%d want=2", len(got))
	}
	if got[0].Token != "token-1" {
		t.Fatalf("unexpected first token: %s", got[0].Token)
	}
	if got[0].ID == "" {
		t.Fatal("expected generated reservation id")
	}
	if got[0].ExpiresAt.IsZero() {
		t.Fatal("expected expires_at to be stored")
	}
}

func TestReservationRepositoryPostgres_UpdateStatusAndListReleaseFailed(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewReservationRepository(store)

	orderID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := repo.CreateAll([]domain.StockReservation{{
		OrderID:   orderID,
		ProductID: "prod-1",
		Qty:       1,
		Token:     "token-1",
		Status:    domain.ReservationStatusReserved,
		CreatedAt: now,
	}}); err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	stored, err := repo.ListByOrder(orderID)
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}

	if err := repo.UpdateStatus(stored[0].ID, domain.ReservationStatusReleaseFailed); err != nil {
		t.Fatalf("update status: %v", err)
	}

	failed, err := repo.ListReleaseFailed(10)
	if err != nil {
		t.Fatalf("list release_failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("unexpected release_failed count: got=%d want=1", len(failed))
	}
	if failed[0].ID != stored[0].ID {
		t.Fatalf("unexpected reservation: got=%s want=%s", failed[0].ID, stored[0].ID)
	}

	if err := repo.UpdateStatus(stored[0].ID, domain.ReservationStatusReleased); err != nil {
		t.Fatalf("update status to released: %v", err)
	}

	failed, err = repo.ListReleaseFailed(10)
	if err != nil {
		t.Fatalf("list release_failed after release: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected empty release_failed list, got %d", len(failed))
	}
}

func TestReservationRepositoryPostgres_UpdateStatusUnknown(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewReservationRepository(store)

	if err := repo.UpdateStatus(uuid.NewString(), domain.ReservationStatusReleased); err == nil {
		t.Fatal("expected error for unknown reservation id")
	}
}
