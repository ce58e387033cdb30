package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestReservationValidate(t *testing.T) {
	now := time.Now().UTC()
	reservation := domain.StockReservation{
		ID:        "res-1",
		OrderID:   "order-1",
		ProductID: "product-a",
		VariantID: "1",
		Qty:       2,
		Token:     "token-1",
		Status:    domain.ReservationStatusReserved,
		ExpiresAt: now.Add(30 * time.Minute),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if errs := reservation.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	reservation.OrderID = ""
	reservation.ProductID = ""
	reservation.Qty = 0
	reservation.Token = ""
	if errs := reservation.Validate(); len(errs) != 4 {
		t.Fatalf("expected 4 validation errors, got %v", errs)
	}
}
