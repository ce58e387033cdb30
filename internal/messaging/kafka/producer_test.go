package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope EventEnvelope
		return json.Unmarshal(value, &envelope)
	})

	envelope := EventEnvelope{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "OrderConfirmed",
		Payload:       json.RawMessage(`{"order_id":"order-123"}`),
		PublishedAt:   time.Now().UTC(),
	}

	if err := producer.PublishEvent(TopicOrderEvents, "order-123", envelope); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	envelope := EventEnvelope{
		ID:          "outbox-2",
		AggregateID: "order-123",
		EventType:   "OrderCanceled",
	}

	if err := producer.PublishEvent(TopicOrderEvents, "order-123", envelope); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer := &Producer{
		logger: log.WithField("component", "kafka-producer-test"),
	}

	// Функции не сериализуются в JSON: сообщение не должно дойти до отправки.
	if err := producer.PublishEvent(TopicOrderEvents, "order-123", func() {}); err == nil {
		t.Fatal("expected marshal error, got nil")
	}
}
