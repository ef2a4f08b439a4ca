package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
)

// Option настраивает Recalculator.
type Option func(*Recalculator)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(r *Recalculator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics задаёт метрики; без них пересчёт не инструментируется.
func WithMetrics(m *metrics.LedgerMetrics) Option {
	return func(r *Recalculator) {
		r.metrics = m
	}
}

// WithObservers добавляет наблюдателей изменения суммы.
func WithObservers(observers ...domain.OrderObserver) Option {
	return func(r *Recalculator) {
		r.observers = append(r.observers, observers...)
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(r *Recalculator) {
		if now != nil {
			r.now = now
		}
	}
}

// Recalculator поддерживает total заказа равным сумме line total его позиций.
type Recalculator struct {
	totals    domain.TotalStore
	orders    domain.OrderReader
	observers []domain.OrderObserver
	logger    *log.Entry
	metrics   *metrics.LedgerMetrics
	now       func() time.Time
}

// NewRecalculator создаёт пересчётчик поверх хранилища.
func NewRecalculator(totals domain.TotalStore, orders domain.OrderReader, opts ...Option) *Recalculator {
	r := &Recalculator{
		totals: totals,
		orders: orders,
		logger: log.WithField("component", "total-recalculator"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecalculateTotal пересчитывает и сохраняет сумму заказа.
// Отсутствующий заказ не является ошибкой: пересчёт молча пропускается.
func (r *Recalculator) RecalculateTotal(ctx context.Context, orderID int64) error {
	at := r.now()
	total, err := r.totals.RecalculateTotal(ctx, orderID, at)
	if errors.Is(err, domain.ErrOrderNotFound) {
		r.metrics.RecordRecalculation(metrics.RecalcMissing)
		r.logger.WithField("order_id", orderID).Debug("order is gone, total recalculation skipped")
		return nil
	}
	if err != nil {
		r.metrics.RecordRecalculation(metrics.RecalcError)
		return fmt.Errorf("recalculate order %d total: %w", orderID, err)
	}
	r.metrics.RecordRecalculation(metrics.RecalcUpdated)

	r.notify(ctx, orderID, total, at)
	return nil
}

// Verify сверяет сохранённую сумму заказа с позициями.
// Расхождение логируется на уровне Error и возвращается как *domain.TotalDriftError.
func (r *Recalculator) Verify(ctx context.Context, orderID int64) error {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	return r.check(order)
}

// VerifyAll сверяет суммы всех заказов, включая архивные, и возвращает найденные расхождения.
// Первое значение: число проверенных заказов.
func (r *Recalculator) VerifyAll(ctx context.Context) (int, []*domain.TotalDriftError, error) {
	orders, err := r.orders.List(ctx, domain.OrderFilter{IncludeArchived: true})
	if err != nil {
		return 0, nil, fmt.Errorf("list orders for verification: %w", err)
	}

	var drifts []*domain.TotalDriftError
	for _, order := range orders {
		if err := r.check(order); err != nil {
			var drift *domain.TotalDriftError
			if errors.As(err, &drift) {
				drifts = append(drifts, drift)
			}
		}
	}
	return len(orders), drifts, nil
}

func (r *Recalculator) check(order domain.Order) error {
	err := order.VerifyTotal()
	if err == nil {
		return nil
	}

	r.metrics.RecordDrift()
	var drift *domain.TotalDriftError
	if errors.As(err, &drift) {
		r.logger.WithFields(log.Fields{
			"order_id": drift.OrderID,
			"stored":   drift.Stored,
			"expected": drift.Expected,
			"overflow": drift.Overflow,
		}).Error("order total drifted from its items")
	}
	return err
}

func (r *Recalculator) notify(ctx context.Context, orderID, total int64, at time.Time) {
	if len(r.observers) == 0 {
		return
	}

	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("failed to load order for observers")
		return
	}

	change := domain.OrderChange{
		Kind:       domain.OrderChangeTotal,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Archived:   order.Archived,
		Total:      total,
		At:         at,
	}
	for _, observer := range r.observers {
		if err := observer.OrderChanged(ctx, change); err != nil {
			r.logger.WithError(err).WithField("order_id", orderID).Warn("order observer failed")
		}
	}
}
