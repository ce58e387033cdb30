package domain

import "time"

// ReservationStatus отражает статус складского резерва по позиции заказа.
type ReservationStatus string

const (
	// ReservationStatusReserved — товар удержан складом под заказ.
	ReservationStatusReserved ReservationStatus = "reserved"
	// ReservationStatusConfirmed — заказ подтверждён, резерв закреплён.
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	// ReservationStatusReleased — резерв снят (отмена заказа или компенсация).
	ReservationStatusReleased ReservationStatus = "released"
	// ReservationStatusReleaseFailed — снять резерв не удалось; запись ждёт
	// повторной попытки фоновой сверки.
	ReservationStatusReleaseFailed ReservationStatus = "release_failed"
)

// StockReservation описывает удержание количества товара под конкретную
// позицию заказа. Сам сток живёт во внешнем складском сервисе, здесь хранится
// токен и статус для компенсаций и фоновой сверки. У резерва есть срок
// действия: склад снимает просроченный резерв сам.
type StockReservation struct {
	ID        string
	OrderID   string
	ProductID string
	VariantID string
	Qty       int32
	Token     string
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля резерва.
func (r *StockReservation) Validate() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if r.ProductID == "" {
		errs = append(errs, ErrReservationProductRequired)
	}
	if r.Qty <= 0 {
		errs = append(errs, ErrReservationQtyInvalid)
	}
	if r.Token == "" {
		errs = append(errs, ErrReservationTokenRequired)
	}

	return errs
}
