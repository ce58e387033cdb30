package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

func newPayment(orderID string, createdAt time.Time) domain.Payment {
	return domain.Payment{
		ID:          orderID + "-payment",
		OrderID:     orderID,
		AmountMinor: 2500,
		Status:      domain.PaymentStatusReady,
		Version:     0,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestPaymentRepository_CreateDuplicate(t *testing.T) {
	repo := memory.NewPaymentRepository()
	payment := newPayment("order-1", time.Now().UTC())

	if err := repo.Create(payment); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(payment); !errors.Is(err, domain.ErrPaymentAlreadyExists) {
		t.Fatalf("expected ErrPaymentAlreadyExists, got %v", err)
	}
}

func TestPaymentRepository_GetExists(t *testing.T) {
	repo := memory.NewPaymentRepository()
	payment := newPayment("order-1", time.Now().UTC())

	if _, err := repo.GetByOrderID("order-1"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}

	if err := repo.Create(payment); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.GetByOrderID("order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != payment.ID {
		t.Fatalf("expected id %s, got %s", payment.ID, stored.ID)
	}

	exists, err := repo.ExistsByOrderID("order-1")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected payment to exist")
	}
}

func TestPaymentRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewPaymentRepository()
	payment := newPayment("order-1", time.Now().UTC())
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.GetByOrderID("order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	stored.Status = domain.PaymentStatusPaid
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Старая версия больше не проходит.
	if err := repo.Save(stored); !errors.Is(err, domain.ErrPaymentVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestPaymentRepository_ListExpiredReady(t *testing.T) {
	repo := memory.NewPaymentRepository()
	now := time.Now().UTC()

	expired := newPayment("order-1", now.Add(-time.Hour))
	fresh := newPayment("order-2", now)
	paid := newPayment("order-3", now.Add(-2*time.Hour))
	paid.Status = domain.PaymentStatusPaid

	for _, payment := range []domain.Payment{expired, fresh, paid} {
		if err := repo.Create(payment); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	found, err := repo.ListExpiredReady(now.Add(-30*time.Minute), 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 expired payment, got %d", len(found))
	}
	if found[0].OrderID != "order-1" {
		t.Fatalf("expected order-1, got %s", found[0].OrderID)
	}
}
