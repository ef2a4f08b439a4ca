package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

// Заголовки Kafka-сообщений леджера. Потребитель может фильтровать по ним,
// не разбирая значение.
const (
	HeaderEventType   = "event_type"
	HeaderOrderID     = "order_id"
	HeaderOutboxID    = "outbox_id"
	HeaderContentType = "content_type"
	HeaderDeadLetter  = "dead_letter"

	contentTypeJSON = "application/json"
)

// OrderEventEnvelope: значение сообщения в топике событий заказов.
type OrderEventEnvelope struct {
	OutboxID    string     `json:"outbox_id"`
	Event       OrderEvent `json:"event"`
	PublishedAt time.Time  `json:"published_at"`
}

// OrderEventPublisher публикует события заказов из outbox, ключ партиционирования: id заказа.
// Все события одного заказа попадают в одну партицию и читаются по порядку.
type OrderEventPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOrderEventPublisher создаёт паблишер событий заказов; пустой topic означает TopicOrderEvents.
func NewOrderEventPublisher(producer *Producer, topic string) *OrderEventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OrderEventPublisher{
		producer: producer,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish проверяет, что payload outbox-сообщения является событием того же заказа
// и того же типа, и отправляет его в конверте.
func (p *OrderEventPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("%w: kafka publisher is not initialized", domain.ErrOutboxPublish)
	}

	event, err := decodeOrderEvent(msg)
	if err != nil {
		return err
	}
	value, err := json.Marshal(OrderEventEnvelope{
		OutboxID:    msg.ID,
		Event:       event,
		PublishedAt: p.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal order event envelope: %w", err)
	}

	key := strconv.FormatInt(event.OrderID, 10)
	return p.producer.Send(Record{
		Topic: p.topic,
		Key:   key,
		Value: value,
		Headers: map[string]string{
			HeaderEventType:   string(event.EventType),
			HeaderOrderID:     key,
			HeaderOutboxID:    msg.ID,
			HeaderContentType: contentTypeJSON,
		},
	})
}

func decodeOrderEvent(msg domain.OutboxMessage) (OrderEvent, error) {
	if msg.AggregateType != AggregateOrder {
		return OrderEvent{}, fmt.Errorf("%w: outbox %s: unexpected aggregate %q", domain.ErrOutboxPublish, msg.ID, msg.AggregateType)
	}

	var event OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: outbox %s: decode order event: %v", domain.ErrOutboxPublish, msg.ID, err)
	}
	if string(event.EventType) != msg.EventType {
		return OrderEvent{}, fmt.Errorf("%w: outbox %s: event type %q does not match payload %q",
			domain.ErrOutboxPublish, msg.ID, msg.EventType, event.EventType)
	}
	if strconv.FormatInt(event.OrderID, 10) != msg.AggregateID {
		return OrderEvent{}, fmt.Errorf("%w: outbox %s: order %s does not match payload order %d",
			domain.ErrOutboxPublish, msg.ID, msg.AggregateID, event.OrderID)
	}
	return event, nil
}

// DeadLetterPublisher отправляет в DLQ outbox-сообщения, которые не удалось опубликовать.
// Значение пишется как есть: его формирует outbox.Worker, payload может быть битым.
type DeadLetterPublisher struct {
	producer *Producer
	topic    string
}

// NewDeadLetterPublisher создаёт паблишер DLQ; пустой topic означает TopicDeadLetterQueue.
func NewDeadLetterPublisher(producer *Producer, topic string) *DeadLetterPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &DeadLetterPublisher{producer: producer, topic: topic}
}

// Publish отправляет сообщение в DLQ с ключом по id заказа.
func (p *DeadLetterPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("%w: kafka dead letter publisher is not initialized", domain.ErrOutboxPublish)
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.Send(Record{
		Topic: p.topic,
		Key:   key,
		Value: msg.Payload,
		Headers: map[string]string{
			HeaderEventType:   msg.EventType,
			HeaderOrderID:     msg.AggregateID,
			HeaderOutboxID:    msg.ID,
			HeaderContentType: contentTypeJSON,
			HeaderDeadLetter:  "true",
		},
	})
}

var (
	_ domain.OutboxPublisher = (*OrderEventPublisher)(nil)
	_ domain.OutboxPublisher = (*DeadLetterPublisher)(nil)
)
