package domain

import (
	"context"
	"time"
)

// OrderChangeKind задаёт тип изменения заказа для наблюдателей.
type OrderChangeKind string

const (
	OrderChangeStatus    OrderChangeKind = "status_changed"
	OrderChangeCancelled OrderChangeKind = "cancelled"
	OrderChangeArchived  OrderChangeKind = "archived"
	OrderChangeTotal     OrderChangeKind = "total_recalculated"
)

// OrderChange: снимок изменённого заказа. Передаётся по значению.
type OrderChange struct {
	Kind       OrderChangeKind
	OrderID    int64
	CustomerID int64
	Status     OrderStatus
	Archived   bool
	Total      int64
	At         time.Time
}

// OrderObserver реагирует на изменения заказа.
// Наблюдатель не получает доступа к хранилищу клиентов или других заказов;
// ошибка наблюдателя не отменяет действие.
type OrderObserver interface {
	OrderChanged(ctx context.Context, change OrderChange) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

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

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Detail   string
	Occurred time.Time
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID int64) ([]TimelineEvent, error)
}
