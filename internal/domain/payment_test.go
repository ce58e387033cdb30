package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func makePayment(status domain.PaymentStatus) domain.Payment {
	now := time.Now().UTC()
	return domain.Payment{
		ID:          "payment-1",
		OrderID:     "order-1",
		AmountMinor: 2500,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPaymentValidate(t *testing.T) {
	payment := makePayment(domain.PaymentStatusReady)
	if errs := payment.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	payment.OrderID = ""
	payment.AmountMinor = -1
	if errs := payment.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %v", errs)
	}
}

func TestPaymentMarkPaid(t *testing.T) {
	now := time.Now().UTC()

	payment := makePayment(domain.PaymentStatusReady)
	if err := payment.MarkPaid("pk-1", now); err != nil {
		t.Fatalf("mark paid from ready: %v", err)
	}
	if payment.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", payment.Status)
	}
	if payment.PaymentKey != "pk-1" {
		t.Fatalf("expected payment key to be stored, got %q", payment.PaymentKey)
	}

	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPaid,
		domain.PaymentStatusCanceled,
		domain.PaymentStatusFailed,
	} {
		payment := makePayment(status)
		if err := payment.MarkPaid("pk-2", now); !errors.Is(err, domain.ErrPaymentStateConflict) {
			t.Fatalf("mark paid from %s: expected ErrPaymentStateConflict, got %v", status, err)
		}
		if payment.Status != status {
			t.Fatalf("status must not change on rejected transition, got %s", payment.Status)
		}
		if payment.PaymentKey != "" {
			t.Fatalf("payment key must not be stored on rejected transition")
		}
	}
}

func TestPaymentCancel(t *testing.T) {
	now := time.Now().UTC()

	// Отмена допустима из ready и из paid (возврат).
	for _, status := range []domain.PaymentStatus{domain.PaymentStatusReady, domain.PaymentStatusPaid} {
		payment := makePayment(status)
		if err := payment.Cancel(now); err != nil {
			t.Fatalf("cancel from %s: %v", status, err)
		}
		if payment.Status != domain.PaymentStatusCanceled {
			t.Fatalf("expected canceled, got %s", payment.Status)
		}
	}

	// Из терминальных статусов переходов нет.
	for _, status := range []domain.PaymentStatus{domain.PaymentStatusCanceled, domain.PaymentStatusFailed} {
		payment := makePayment(status)
		if err := payment.Cancel(now); !errors.Is(err, domain.ErrPaymentStateConflict) {
			t.Fatalf("cancel from %s: expected ErrPaymentStateConflict, got %v", status, err)
		}
	}
}

func TestPaymentFail(t *testing.T) {
	now := time.Now().UTC()

	payment := makePayment(domain.PaymentStatusReady)
	if err := payment.Fail(now); err != nil {
		t.Fatalf("fail from ready: %v", err)
	}
	if payment.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", payment.Status)
	}

	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPaid,
		domain.PaymentStatusCanceled,
		domain.PaymentStatusFailed,
	} {
		payment := makePayment(status)
		if err := payment.Fail(now); !errors.Is(err, domain.ErrPaymentStateConflict) {
			t.Fatalf("fail from %s: expected ErrPaymentStateConflict, got %v", status, err)
		}
	}
}
