package kafka

import (
	"encoding/json"
	"time"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "orderflow.order.events"
	TopicDeadLetterQueue = "orderflow.dlq"
)

// Kafka headers для retry логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// EventEnvelope — формат сообщения в топике событий заказов. Поле Payload
// несёт исходное тело события из outbox без переупаковки.
type EventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
