package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет новый заказ вместе с позициями.
	// Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// PaymentRepository описывает хранилище платежей. Уникальность OrderID
// обеспечивает инвариант "один платёж на заказ".
type PaymentRepository interface {
	// Create сохраняет новый платёж; ErrPaymentAlreadyExists при повторе по заказу.
	Create(payment Payment) error
	// GetByOrderID возвращает платёж заказа или ErrPaymentNotFound.
	GetByOrderID(orderID string) (Payment, error)
	// ExistsByOrderID проверяет наличие платежа без загрузки записи.
	ExistsByOrderID(orderID string) (bool, error)
	// Save применяет обновления с учётом optimistic locking.
	Save(payment Payment) error
	// ListExpiredReady возвращает платежи в ready, созданные раньше before.
	// Используется фоновой отменой по TTL.
	ListExpiredReady(before time.Time, limit int) ([]Payment, error)
}

// ReservationRepository хранит локальные записи складских резервов для
// компенсаций и фоновой сверки.
type ReservationRepository interface {
	// CreateAll сохраняет резервы заказа одной операцией.
	CreateAll(reservations []StockReservation) error
	// ListByOrder возвращает резервы заказа.
	ListByOrder(orderID string) ([]StockReservation, error)
	// UpdateStatus переводит резерв в новый статус.
	UpdateStatus(id string, status ReservationStatus) error
	// ListReleaseFailed возвращает резервы, ожидающие повторного снятия.
	ListReleaseFailed(limit int) ([]StockReservation, error)
}
