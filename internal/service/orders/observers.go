package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
)

// TimelineObserver дописывает изменения заказа в его timeline.
type TimelineObserver struct {
	timeline domain.TimelineRepository
	metrics  *metrics.LedgerMetrics
}

// NewTimelineObserver создаёт наблюдателя, пишущего только в timeline.
func NewTimelineObserver(timeline domain.TimelineRepository, m *metrics.LedgerMetrics) *TimelineObserver {
	return &TimelineObserver{timeline: timeline, metrics: m}
}

// OrderChanged добавляет событие в timeline заказа change.OrderID.
func (o *TimelineObserver) OrderChanged(ctx context.Context, change domain.OrderChange) error {
	var detail string
	switch change.Kind {
	case domain.OrderChangeArchived:
		detail = "archived=true"
	case domain.OrderChangeTotal:
		detail = "total=" + strconv.FormatInt(change.Total, 10)
	default:
		detail = "status=" + string(change.Status)
	}

	err := o.timeline.Append(ctx, domain.TimelineEvent{
		OrderID:  change.OrderID,
		Type:     string(change.Kind),
		Detail:   detail,
		Occurred: change.At,
	})
	if err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}
	o.metrics.RecordTimelineEvent()
	return nil
}

// OutboxObserver ставит событие заказа в outbox для публикации в Kafka.
type OutboxObserver struct {
	outbox  domain.OutboxRepository
	metrics *metrics.LedgerMetrics
}

// NewOutboxObserver создаёт наблюдателя, пишущего только в outbox.
func NewOutboxObserver(outbox domain.OutboxRepository, m *metrics.LedgerMetrics) *OutboxObserver {
	return &OutboxObserver{outbox: outbox, metrics: m}
}

// OrderChanged сериализует изменение в kafka.OrderEvent и кладёт его в outbox.
func (o *OutboxObserver) OrderChanged(ctx context.Context, change domain.OrderChange) error {
	eventType, ok := kafka.EventTypeFor(change.Kind)
	if !ok {
		return fmt.Errorf("unknown order change kind %q", change.Kind)
	}

	payload, err := json.Marshal(kafka.NewOrderEvent(eventType, change))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	_, err = o.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   strconv.FormatInt(change.OrderID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue order event: %w", err)
	}
	o.metrics.RecordOutboxEvent()
	return nil
}

var (
	_ domain.OrderObserver = (*TimelineObserver)(nil)
	_ domain.OrderObserver = (*OutboxObserver)(nil)
)
