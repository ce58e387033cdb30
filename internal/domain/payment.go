package domain

import "time"

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	// PaymentStatusReady — платёж подготовлен и ожидает подтверждения от провайдера.
	PaymentStatusReady PaymentStatus = "ready"
	// PaymentStatusPaid — оплата подтверждена провайдером.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusCanceled — платёж отменён (включая возврат после оплаты).
	PaymentStatusCanceled PaymentStatus = "canceled"
	// PaymentStatusFailed — платёж не состоялся; терминальный статус.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment описывает платёж, связанный с заказом строго один-к-одному.
// Запись никогда не удаляется, только переводится по статусам.
type Payment struct {
	ID      string
	OrderID string
	// PaymentKey — внешний идентификатор у платёжного провайдера.
	// Пуст до первого ответа провайдера.
	PaymentKey string
	// AmountMinor фиксируется при создании и обязан совпадать с суммой заказа.
	AmountMinor int64
	Status      PaymentStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет корректность ключевых полей платежа.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}

	return errs
}

// CanMarkPaid сообщает, допустим ли переход ready → paid.
func (p *Payment) CanMarkPaid() bool {
	return p.Status == PaymentStatusReady
}

// MarkPaid фиксирует подтверждение оплаты и ключ провайдера.
// Недопустимый исходный статус — ErrPaymentStateConflict, состояние не меняется.
func (p *Payment) MarkPaid(paymentKey string, now time.Time) error {
	if !p.CanMarkPaid() {
		return ErrPaymentStateConflict
	}
	p.Status = PaymentStatusPaid
	p.PaymentKey = paymentKey
	p.UpdatedAt = now
	return nil
}

// CanCancel сообщает, допустима ли отмена: из ready и из paid (возврат).
func (p *Payment) CanCancel() bool {
	return p.Status == PaymentStatusReady || p.Status == PaymentStatusPaid
}

// Cancel переводит платёж в canceled. Из canceled/failed переходов нет.
func (p *Payment) Cancel(now time.Time) error {
	if !p.CanCancel() {
		return ErrPaymentStateConflict
	}
	p.Status = PaymentStatusCanceled
	p.UpdatedAt = now
	return nil
}

// CanFail сообщает, допустим ли переход ready → failed.
func (p *Payment) CanFail() bool {
	return p.Status == PaymentStatusReady
}

// Fail фиксирует неуспех платежа.
func (p *Payment) Fail(now time.Time) error {
	if !p.CanFail() {
		return ErrPaymentStateConflict
	}
	p.Status = PaymentStatusFailed
	p.UpdatedAt = now
	return nil
}
