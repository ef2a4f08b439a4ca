package orders

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
)

// ParseListFilter проверяет сырые параметры списка заказов.
// Пустые после обрезки пробелов значения означают отсутствие фильтра.
func ParseListFilter(status, email string) (domain.OrderFilter, error) {
	var filter domain.OrderFilter

	if strings.TrimSpace(status) != "" {
		parsed, err := domain.ParseOrderStatus("status", status)
		if err != nil {
			return domain.OrderFilter{}, err
		}
		filter.Status = parsed
	}
	filter.Email = strings.TrimSpace(email)

	return filter, nil
}

// Query отдаёт отфильтрованный список неархивных заказов.
type Query struct {
	orders  domain.OrderReader
	metrics *metrics.LedgerMetrics
	logger  *log.Entry
}

// NewQuery создаёт сервис выборки заказов.
func NewQuery(orders domain.OrderReader, m *metrics.LedgerMetrics, logger *log.Entry) *Query {
	if logger == nil {
		logger = log.WithField("component", "order-query")
	}
	return &Query{orders: orders, metrics: m, logger: logger}
}

// List проверяет параметры и возвращает заказы по id DESC.
// Неизвестный статус отклоняется ошибкой *domain.ValidationError.
func (q *Query) List(ctx context.Context, status, email string) ([]domain.Order, error) {
	filter, err := ParseListFilter(status, email)
	if err != nil {
		q.metrics.RecordListRejected()
		q.logger.WithField("status", status).Debug("order list filter rejected")
		return nil, err
	}
	return q.orders.List(ctx, filter)
}

// Get возвращает заказ по id, включая архивные.
func (q *Query) Get(ctx context.Context, id int64) (domain.Order, error) {
	return q.orders.Get(ctx, id)
}
