package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

func headersOf(msg *sarama.ProducerMessage) map[string]string {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	return headers
}

func TestProducer_Send(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockProducer)

	var sent *sarama.ProducerMessage
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		sent = msg
		return nil
	})

	err := producer.Send(Record{
		Topic:   TopicOrderEvents,
		Key:     "42",
		Value:   []byte(`{"order_id":42}`),
		Headers: map[string]string{HeaderOrderID: "42", HeaderEventType: string(EventTypeOrderCancelled)},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}

	if sent.Topic != TopicOrderEvents {
		t.Errorf("unexpected topic %q", sent.Topic)
	}
	key, _ := sent.Key.Encode()
	if string(key) != "42" {
		t.Errorf("unexpected key %q", key)
	}
	if len(sent.Headers) != 2 || string(sent.Headers[0].Key) != HeaderEventType {
		t.Errorf("headers must be sorted by key, got %+v", sent.Headers)
	}
	if headersOf(sent)[HeaderOrderID] != "42" {
		t.Errorf("unexpected headers: %v", headersOf(sent))
	}
}

func TestProducer_SendError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockProducer)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.Send(Record{Topic: TopicOrderEvents, Key: "1", Value: []byte(`{}`)})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_SendRequiresTopic(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockProducer)

	if err := producer.Send(Record{Key: "1"}); err == nil {
		t.Fatal("expected error for record without topic")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := NewOrderEvent(EventTypeOrderArchived, domain.OrderChange{
		OrderID:    5,
		CustomerID: 3,
		Status:     domain.OrderStatusPaid,
		Archived:   true,
		At:         at,
	})

	if event.EventType != EventTypeOrderArchived {
		t.Errorf("expected event type %s, got %s", EventTypeOrderArchived, event.EventType)
	}
	if !event.Archived || event.Status != "paid" {
		t.Errorf("unexpected event: %+v", event)
	}
	if !event.Timestamp.Equal(at) {
		t.Errorf("expected timestamp %s, got %s", at, event.Timestamp)
	}

	if NewOrderEvent(EventTypeOrderArchived, domain.OrderChange{}).Timestamp.IsZero() {
		t.Error("timestamp should default to now")
	}
}

func TestEventTypeFor(t *testing.T) {
	tests := map[domain.OrderChangeKind]EventType{
		domain.OrderChangeStatus:    EventTypeOrderStatusChanged,
		domain.OrderChangeCancelled: EventTypeOrderCancelled,
		domain.OrderChangeArchived:  EventTypeOrderArchived,
		domain.OrderChangeTotal:     EventTypeOrderTotalRecounted,
	}
	for kind, want := range tests {
		got, ok := EventTypeFor(kind)
		if !ok || got != want {
			t.Errorf("EventTypeFor(%s) = %s, %v; want %s", kind, got, ok, want)
		}
	}

	if _, ok := EventTypeFor("unknown"); ok {
		t.Error("unknown kind must not map to an event type")
	}
}
