package orders

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
)

// Действия над заказом для метрик и логов.
const (
	ActionCreate    = "create"
	ActionSetStatus = "set_status"
	ActionCancel    = "cancel"
	ActionArchive   = "archive"
)

// Option настраивает Lifecycle.
type Option func(*Lifecycle)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics задаёт метрики действий.
func WithMetrics(m *metrics.LedgerMetrics) Option {
	return func(l *Lifecycle) {
		l.metrics = m
	}
}

// WithObservers добавляет наблюдателей изменений заказа.
func WithObservers(observers ...domain.OrderObserver) Option {
	return func(l *Lifecycle) {
		l.observers = append(l.observers, observers...)
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// Lifecycle: единственная точка изменения состояния заказа.
// Зависит только от domain.OrderLifecycleStore: клиенты и чужие заказы ему недоступны.
type Lifecycle struct {
	store     domain.OrderLifecycleStore
	observers []domain.OrderObserver
	logger    *log.Entry
	metrics   *metrics.LedgerMetrics
	now       func() time.Time
}

// NewLifecycle создаёт сервис действий над заказом.
func NewLifecycle(store domain.OrderLifecycleStore, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:  store,
		logger: log.WithField("component", "order-lifecycle"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create создаёт пустой заказ клиента. Пустой статус означает draft.
func (l *Lifecycle) Create(ctx context.Context, customerID int64, rawStatus string) (domain.Order, error) {
	status := domain.OrderStatusDraft
	if strings.TrimSpace(rawStatus) != "" {
		parsed, err := domain.ParseOrderStatus("status", rawStatus)
		if err != nil {
			return domain.Order{}, err
		}
		status = parsed
	}

	order, err := l.store.Create(ctx, customerID, status, l.now())
	if err != nil {
		return domain.Order{}, err
	}

	l.metrics.RecordOrderAction(ActionCreate)
	l.logger.WithFields(log.Fields{"order_id": order.ID, "customer_id": customerID}).Info("order created")
	return order, nil
}

// SetStatus устанавливает любой статус из перечисления; граф переходов не проверяется.
func (l *Lifecycle) SetStatus(ctx context.Context, id int64, rawStatus string) (domain.Order, error) {
	status, err := domain.ParseOrderStatus("status", rawStatus)
	if err != nil {
		return domain.Order{}, err
	}
	return l.transition(ctx, id, ActionSetStatus, domain.OrderChangeStatus,
		func(at time.Time) (domain.Order, bool, error) { return l.store.SetStatus(ctx, id, status, at) },
	)
}

// Cancel переводит заказ в cancelled. Повторный вызов ничего не меняет.
func (l *Lifecycle) Cancel(ctx context.Context, id int64) (domain.Order, error) {
	return l.transition(ctx, id, ActionCancel, domain.OrderChangeCancelled,
		func(at time.Time) (domain.Order, bool, error) {
			return l.store.SetStatus(ctx, id, domain.OrderStatusCancelled, at)
		},
	)
}

// Archive помечает заказ архивным. Повторный вызов ничего не меняет.
func (l *Lifecycle) Archive(ctx context.Context, id int64) (domain.Order, error) {
	return l.transition(ctx, id, ActionArchive, domain.OrderChangeArchived,
		func(at time.Time) (domain.Order, bool, error) { return l.store.Archive(ctx, id, at) },
	)
}

// transition применяет действие через хранилище, которое само сравнивает
// текущее состояние с целевым. Наблюдатели уведомляются только о реальном изменении,
// поэтому конкурентные повторы дают одно событие.
func (l *Lifecycle) transition(
	ctx context.Context,
	id int64,
	action string,
	kind domain.OrderChangeKind,
	apply func(at time.Time) (domain.Order, bool, error),
) (domain.Order, error) {
	logger := l.logger.WithFields(log.Fields{"order_id": id, "operation": action})

	at := l.now()
	order, changed, err := apply(at)
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		logger.Debug("order already in target state")
		return order, nil
	}

	l.metrics.RecordOrderAction(action)
	logger.Info("order updated")

	change := domain.OrderChange{
		Kind:       kind,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Archived:   order.Archived,
		Total:      order.Total,
		At:         at,
	}
	for _, observer := range l.observers {
		if err := observer.OrderChanged(ctx, change); err != nil {
			logger.WithError(err).Warn("order observer failed")
		}
	}
	return order, nil
}
