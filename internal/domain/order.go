package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, резерв получен, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — оплата подтверждена, заказ финализирован.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusCanceled — заказ отменён; терминальный статус без переходов наружу.
	OrderStatusCanceled OrderStatus = "canceled"
)

// Address — снапшот адреса доставки на момент оформления заказа.
// Последующие изменения профиля клиента сюда не попадают.
type Address struct {
	Recipient string
	Phone     string
	Line1     string
	Line2     string
	City      string
	Zip       string
}

// OrderItem представляет одну позицию заказа. Позиция живёт строго внутри
// своего заказа и не имеет независимого жизненного цикла.
type OrderItem struct {
	ID        string
	ProductID string
	VariantID string
	Qty       int32
	// PriceMinor — цена за единицу на момент оформления, в минимальных денежных единицах.
	PriceMinor int64
	// ReservationToken — токен складского резерва, заполняется после успешного Reserve.
	ReservationToken string
	CreatedAt        time.Time
}

// Subtotal возвращает сумму позиции: qty * price.
func (i OrderItem) Subtotal() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Order агрегирует состояние заказа, его позиции и снапшот адреса.
// AmountMinor фиксируется при создании и далее неизменен: последующие
// изменения цен никогда не влияют на уже оформленный заказ.
type Order struct {
	ID          string
	CustomerID  string
	Status      OrderStatus
	Currency    string
	AmountMinor int64
	Address     Address
	Items       []OrderItem
	// CartItemIDs — позиции корзины, из которых собран заказ. Очистка корзины
	// откладывается до подтверждения, поэтому идентификаторы уезжают в
	// событии OrderConfirmed, а не применяются при создании.
	CartItemIDs []string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// ConfirmedAt задаёт точку отсчёта grace-периода для отмены подтверждённого заказа.
	ConfirmedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if o.Address.Recipient == "" || o.Address.Line1 == "" {
		errs = append(errs, ErrAddressIncomplete)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.Subtotal()
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// CanConfirm сообщает, допустим ли переход в confirmed из текущего статуса.
func (o *Order) CanConfirm() bool {
	return o.Status == OrderStatusPending
}

// Confirm переводит заказ в confirmed. При недопустимом исходном статусе
// возвращает ErrInvalidStateTransition и не меняет состояние.
func (o *Order) Confirm(now time.Time) error {
	if !o.CanConfirm() {
		return ErrInvalidStateTransition
	}
	o.Status = OrderStatusConfirmed
	o.ConfirmedAt = now
	o.UpdatedAt = now
	return nil
}

// CanCancel сообщает, допустима ли отмена: pending отменяется всегда,
// confirmed — только в пределах grace-периода после подтверждения.
func (o *Order) CanCancel(now time.Time, grace time.Duration) bool {
	switch o.Status {
	case OrderStatusPending:
		return true
	case OrderStatusConfirmed:
		return !o.ConfirmedAt.IsZero() && now.Sub(o.ConfirmedAt) <= grace
	default:
		return false
	}
}

// Cancel переводит заказ в canceled. Из canceled переходов нет.
func (o *Order) Cancel(now time.Time, grace time.Duration) error {
	if !o.CanCancel(now, grace) {
		return ErrInvalidStateTransition
	}
	o.Status = OrderStatusCanceled
	o.UpdatedAt = now
	return nil
}
