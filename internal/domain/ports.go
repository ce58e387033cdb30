package domain

import (
	"context"
	"time"
)

// StockReservationClient описывает взаимодействие с внешним складским сервисом.
// Reserve вызывается ровно один раз на позицию в рамках одной попытки создания
// заказа: молчаливый повтор мог бы задвоить резерв, поэтому неуспех Reserve
// терминален для попытки и запускает компенсацию.
type StockReservationClient interface {
	// Reserve удерживает qty единиц (productID, variantID) и возвращает токен резерва.
	Reserve(ctx context.Context, productID, variantID string, qty int32) (string, error)
	// Release снимает резерв по токену. Неуспех не фатален: запись уходит
	// в фоновую сверку.
	Release(ctx context.Context, token string) error
}

// CheckoutSession — данные платёжной сессии, подготовленной шлюзом.
type CheckoutSession struct {
	ClientKey  string
	SuccessURL string
	FailURL    string
}

// PaymentGateway описывает взаимодействие с платёжным провайдером.
type PaymentGateway interface {
	// Prepare регистрирует платёж у провайдера и возвращает сессию для клиента.
	Prepare(ctx context.Context, orderID string, amountMinor int64) (CheckoutSession, error)
	// CancelPayment отменяет/возвращает платёж. Неуспех на пути отмены заказа
	// логируется и сверяется позже, доменный переход он не блокирует.
	CancelPayment(ctx context.Context, orderID string, cancelAmountMinor int64, orderItemIDs []string) error
}

// OrderLocker сериализует операции над одним заказом: подтверждение и отмена
// одного orderID взаимно исключены. Блокировка держится только на время
// критической секции "прочитать-проверить-записать" и никогда не растягивается
// на сетевые вызовы.
type OrderLocker interface {
	WithLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// Типы доменных событий, публикуемых через outbox.
const (
	EventTypePaymentReady   = "PaymentReady"
	EventTypeOrderCreated   = "OrderCreated"
	EventTypeOrderConfirmed = "OrderConfirmed"
	EventTypeOrderCanceled  = "OrderCanceled"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
