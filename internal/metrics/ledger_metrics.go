package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты пересчёта суммы заказа.
const (
	RecalcUpdated = "updated"
	RecalcMissing = "missing"
	RecalcError   = "error"
)

// LedgerMetrics содержит метрики операций леджера.
// Все методы безопасны для nil-получателя.
type LedgerMetrics struct {
	// Пересчёт и сверка суммы
	recalculations *prometheus.CounterVec
	driftDetected  prometheus.Counter

	// Действия над заказами
	orderActions *prometheus.CounterVec
	listRejected prometheus.Counter

	summaryDuration prometheus.Histogram
	httpRequests    *prometheus.CounterVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Публикация outbox
	outboxPublish   *prometheus.CounterVec
	outboxPending   prometheus.Gauge
	outboxOldestAge prometheus.Gauge
}

// NewLedgerMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewLedgerMetrics() *LedgerMetrics {
	return NewLedgerMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLedgerMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewLedgerMetricsWithRegisterer(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LedgerMetrics{
		recalculations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ledger_total_recalculations_total",
			Help: "Total number of order total recalculations grouped by result",
		}, []string{"result"}),
		driftDetected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ledger_total_drift_detected_total",
			Help: "Total number of orders whose stored total differs from their items",
		}),
		orderActions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ledger_order_actions_total",
			Help: "Total number of order lifecycle actions grouped by action",
		}, []string{"action"}),
		listRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ledger_order_list_rejected_total",
			Help: "Total number of order list requests rejected by filter validation",
		}),
		summaryDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ledger_summary_duration_seconds",
			Help:    "Duration of top customers summary queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP API requests grouped by route and status code",
		}, []string{"route", "code"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ledger_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ledger_outbox_events_total",
			Help: "Total number of events enqueued to outbox",
		}),
		outboxPublish: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ledger_outbox_publish_attempts_total",
			Help: "Total number of order event publish attempts grouped by result",
		}, []string{"result"}),
		outboxPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ledger_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox",
		}),
		outboxOldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ledger_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordRecalculation увеличивает счётчик пересчётов с результатом result.
func (m *LedgerMetrics) RecordRecalculation(result string) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues(result).Inc()
}

// RecordDrift фиксирует найденное расхождение суммы.
func (m *LedgerMetrics) RecordDrift() {
	if m == nil {
		return
	}
	m.driftDetected.Inc()
}

// RecordOrderAction увеличивает счётчик действия над заказом.
func (m *LedgerMetrics) RecordOrderAction(action string) {
	if m == nil {
		return
	}
	m.orderActions.WithLabelValues(action).Inc()
}

// RecordListRejected фиксирует отклонённый фильтр списка заказов.
func (m *LedgerMetrics) RecordListRejected() {
	if m == nil {
		return
	}
	m.listRejected.Inc()
}

// RecordSummaryDuration записывает время построения рейтинга клиентов.
func (m *LedgerMetrics) RecordSummaryDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.summaryDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest увеличивает счётчик запросов к HTTP API.
func (m *LedgerMetrics) RecordHTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, fmt.Sprint(code)).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *LedgerMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *LedgerMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// RecordOutboxPublish увеличивает счётчик попыток публикации с результатом result.
func (m *LedgerMetrics) RecordOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.outboxPublish.WithLabelValues(result).Inc()
}

// SetOutboxBacklog обновляет размер backlog и возраст самого старого сообщения.
func (m *LedgerMetrics) SetOutboxBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.outboxPending.Set(float64(pending))
	m.outboxOldestAge.Set(oldestAge.Seconds())
}
