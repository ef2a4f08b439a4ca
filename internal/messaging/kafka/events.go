package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderStatusChanged  EventType = "order.status_changed"
	EventTypeOrderCancelled      EventType = "order.cancelled"
	EventTypeOrderArchived       EventType = "order.archived"
	EventTypeOrderTotalRecounted EventType = "order.total_recalculated"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "ledger.order.events"
	TopicDeadLetterQueue = "ledger.dlq" // Dead Letter Queue для сообщений, не прошедших retry
)

// AggregateOrder: aggregate_type событий заказа в outbox.
const AggregateOrder = "order"

var changeEventTypes = map[domain.OrderChangeKind]EventType{
	domain.OrderChangeStatus:    EventTypeOrderStatusChanged,
	domain.OrderChangeCancelled: EventTypeOrderCancelled,
	domain.OrderChangeArchived:  EventTypeOrderArchived,
	domain.OrderChangeTotal:     EventTypeOrderTotalRecounted,
}

// EventTypeFor возвращает тип события для изменения заказа.
func EventTypeFor(kind domain.OrderChangeKind) (EventType, bool) {
	eventType, ok := changeEventTypes[kind]
	return eventType, ok
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType `json:"event_type"`
	OrderID    int64     `json:"order_id"`
	CustomerID int64     `json:"customer_id"`
	Status     string    `json:"status"`
	Archived   bool      `json:"archived"`
	Total      int64     `json:"total"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOrderEvent создаёт событие заказа из снимка изменения.
func NewOrderEvent(eventType EventType, change domain.OrderChange) *OrderEvent {
	timestamp := change.At
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    change.OrderID,
		CustomerID: change.CustomerID,
		Status:     string(change.Status),
		Archived:   change.Archived,
		Total:      change.Total,
		Timestamp:  timestamp,
	}
}
