package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func makeIntegrationPayment(orderID string) domain.Payment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		AmountMinor: 2500,
		Status:      domain.PaymentStatusReady,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPaymentRepositoryPostgres_CreateAndGet(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPaymentRepository(store)

	orderID := uuid.NewString()
	payment := makeIntegrationPayment(orderID)
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	got, err := repo.GetByOrderID(orderID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.Status != domain.PaymentStatusReady {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if got.AmountMinor != 2500 {
		t.Fatalf("unexpected amount: %d", got.AmountMinor)
	}

	exists, err := repo.ExistsByOrderID(orderID)
	if err != nil {
		t.Fatalf("exists check: %v", err)
	}
	if !exists {
		t.Fatal("expected payment to exist")
	}
}

func TestPaymentRepositoryPostgres_DuplicateOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPaymentRepository(store)

	orderID := uuid.NewString()
	if err := repo.Create(makeIntegrationPayment(orderID)); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	err := repo.Create(makeIntegrationPayment(orderID))
	if !errors.Is(err, domain.ErrPaymentAlreadyExists) {
		t.Fatalf("expected ErrPaymentAlreadyExists, got %v", err)
	}
}

func TestPaymentRepositoryPostgres_SaveVersionConflict(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPaymentRepository(store)

	payment := makeIntegrationPayment(uuid.NewString())
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	payment.Status = domain.PaymentStatusPaid
	payment.PaymentKey = "pg-key-1"
	payment.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.Save(payment); err != nil {
		t.Fatalf("save payment: %v", err)
	}

	if err := repo.Save(payment); !errors.Is(err, domain.ErrPaymentVersionConflict) {
		t.Fatalf("expected ErrPaymentVersionConflict, got %v", err)
	}
}

func TestPaymentRepositoryPostgres_ListExpiredReady(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewPaymentRepository(store)

	now := time.Now().UTC().Truncate(time.Microsecond)

	expired := makeIntegrationPayment(uuid.NewString())
	expired.CreatedAt = now.Add(-time.Hour)
	expired.UpdatedAt = expired.CreatedAt
	if err := repo.Create(expired); err != nil {
		t.Fatalf("create expired payment: %v", err)
	}

	fresh := makeIntegrationPayment(uuid.NewString())
	if err := repo.Create(fresh); err != nil {
		t.Fatalf("create fresh payment: %v", err)
	}

	paid := makeIntegrationPayment(uuid.NewString())
	paid.Status = domain.PaymentStatusPaid
	paid.CreatedAt = now.Add(-time.Hour)
	paid.UpdatedAt = paid.CreatedAt
	if err := repo.Create(paid); err != nil {
		t.Fatalf("create paid payment: %v", err)
	}

	got, err := repo.ListExpiredReady(now.Add(-30*time.Minute), 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected expired count: got=%d want=1", len(got))
	}
	if got[0].ID != expired.ID {
		t.Fatalf("unexpected expired payment: got=%s want=%s", got[0].ID, expired.ID)
	}
}
