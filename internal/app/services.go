package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
	"github.com/vladislavdragonenkov/ledger/internal/service/ledger"
	"github.com/vladislavdragonenkov/ledger/internal/service/orders"
	"github.com/vladislavdragonenkov/ledger/internal/service/summary"
	"github.com/vladislavdragonenkov/ledger/internal/transport/httpapi"
)

// services прикладные сервисы леджера поверх выбранного хранилища.
type services struct {
	recalc    *ledger.Recalculator
	items     *ledger.ItemService
	query     *orders.Query
	lifecycle *orders.Lifecycle
	summary   *summary.Aggregator
}

func newServices(deps *runtimeDependencies, cfg Config, m *metrics.LedgerMetrics, logger *log.Entry) *services {
	observers := []domain.OrderObserver{
		orders.NewTimelineObserver(deps.timeline, m),
		orders.NewOutboxObserver(deps.outbox, m),
	}

	recalc := ledger.NewRecalculator(deps.store.Totals(), deps.store.Orders(),
		ledger.WithLogger(logger.WithField("layer", "recalculator")),
		ledger.WithMetrics(m),
		ledger.WithObservers(observers...),
	)

	return &services{
		recalc: recalc,
		items:  ledger.NewItemService(deps.store.Items(), recalc, logger.WithField("layer", "items")),
		query:  orders.NewQuery(deps.store.Orders(), m, logger.WithField("layer", "order-query")),
		lifecycle: orders.NewLifecycle(deps.store.Orders(),
			orders.WithLogger(logger.WithField("layer", "lifecycle")),
			orders.WithMetrics(m),
			orders.WithObservers(observers...),
		),
		summary: summary.NewAggregator(deps.store.Spend(), cfg.SummaryMaxLimit, m, logger.WithField("layer", "summary")),
	}
}

func (s *services) httpDependencies(deps *runtimeDependencies, m *metrics.LedgerMetrics, logger *log.Entry) httpapi.Dependencies {
	return httpapi.Dependencies{
		Customers:       deps.store.Customers(),
		CustomerDeleter: deps.store.CustomerDeleter(),
		Orders:          s.query,
		Lifecycle:       s.lifecycle,
		Items:           s.items,
		Summary:         s.summary,
		Timeline:        deps.timeline,
		Metrics:         m,
		Logger:          logger.WithField("layer", "http"),
	}
}
