package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope EventEnvelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		if envelope.ID != "outbox-1" {
			return errors.New("outbox id is not preserved")
		}
		if envelope.EventType != "OrderConfirmed" {
			return errors.New("event type is not preserved")
		}
		if envelope.PublishedAt.IsZero() {
			return errors.New("published_at is not set")
		}
		return nil
	})

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-test"),
	}
	publisher := NewOutboxPublisher(producer, "")

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "OrderConfirmed",
		Payload:       []byte(`{"order_id":"order-123"}`),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_KeyFallsBackToMessageID(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	// Без aggregate_id ключом становится id записи outbox.
	err := publisher.Publish(domain.OutboxMessage{
		ID:        "outbox-2",
		EventType: "PaymentReady",
		Payload:   []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_ProducerError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	err := publisher.Publish(domain.OutboxMessage{
		ID:          "outbox-3",
		AggregateID: "order-123",
		EventType:   "OrderCanceled",
		Payload:     []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NilProducer(t *testing.T) {
	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-4"}); err == nil {
		t.Fatal("expected error for uninitialized publisher")
	}
}
