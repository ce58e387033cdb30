package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка неполного снапшота адреса доставки.
	ErrAddressIncomplete = errors.New("shipping address is incomplete")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка отсутствующего product_id в позиции.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")
	// Ошибка отсутствующего идентификатора заказа в платежах/резервах.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего product_id в резерве.
	ErrReservationProductRequired = errors.New("reservation product_id is required")
	// Ошибка некорректного количества в резерве.
	ErrReservationQtyInvalid = errors.New("reservation qty must be greater than zero")
	// Ошибка отсутствующего токена резерва.
	ErrReservationTokenRequired = errors.New("reservation token is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж по заказу не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrPaymentVersionConflict сигнализирует о конфликте версий при сохранении платежа.
	ErrPaymentVersionConflict = errors.New("payment version conflict")
	// ErrPaymentAlreadyExists — попытка завести второй платёж на тот же заказ.
	ErrPaymentAlreadyExists = errors.New("payment for order already exists")

	// ErrInvalidStateTransition — недопустимый переход статуса заказа; состояние не меняется.
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	// ErrPaymentStateConflict — недопустимый переход статуса платежа; состояние не меняется.
	ErrPaymentStateConflict = errors.New("payment state conflict")

	// ErrStockUnavailable — склад отказал в резерве; попытка создания заказа
	// завершается полной компенсацией уже полученных резервов.
	ErrStockUnavailable = errors.New("stock unavailable")
	// ErrStockTemporary — временная ошибка складского сервиса.
	ErrStockTemporary = errors.New("stock service temporary error")
	// ErrReleaseFailed — не удалось снять резерв; не фатально, чинится фоновой сверкой.
	ErrReleaseFailed = errors.New("stock release failed")

	// ErrGatewayUnavailable — платёжный шлюз недоступен или отклонил запрос.
	ErrGatewayUnavailable = errors.New("payment gateway error")
	// ErrGatewayTemporary — временная ошибка шлюза, допускает ограниченный повтор.
	ErrGatewayTemporary = errors.New("payment gateway temporary error")

	// ErrAmountIntegrity — расхождение суммы платежа и суммы заказа.
	// Фатальная ошибка целостности: никогда не исправляется молча.
	ErrAmountIntegrity = errors.New("payment amount does not match order amount")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже занят записью с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже занят записью с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is used with different request")
	// ErrIdempotencyKeyNotFound — запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsValidation проверяет, относится ли ошибка к нарушению инвариантов входных
// данных заказа. Работает и для объединённых через errors.Join ошибок.
func IsValidation(err error) bool {
	for _, sentinel := range []error{
		ErrCustomerRequired,
		ErrCurrencyRequired,
		ErrItemsRequired,
		ErrAddressIncomplete,
		ErrAmountNegative,
		ErrItemProductRequired,
		ErrItemQtyInvalid,
		ErrItemPriceInvalid,
		ErrAmountMismatch,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий заказа или платежа.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrPaymentVersionConflict)
}

// IsTemporary сообщает, относится ли ошибка внешнего сервиса к временным,
// для которых на вызывающей границе допустим ограниченный повтор.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrStockTemporary) || errors.Is(err, ErrGatewayTemporary)
}
