package summary

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
)

const (
	// DefaultLimit применяется, когда limit не передан.
	DefaultLimit = 50
	// DefaultMaxLimit: верхняя граница limit по умолчанию.
	DefaultMaxLimit = 500
)

// Aggregator строит рейтинг активных клиентов по сумме оплаченных неархивных заказов.
type Aggregator struct {
	spend    domain.SpendReader
	maxLimit int
	metrics  *metrics.LedgerMetrics
	logger   *log.Entry
}

// NewAggregator создаёт агрегатор; maxLimit <= 0 заменяется DefaultMaxLimit.
func NewAggregator(spend domain.SpendReader, maxLimit int, m *metrics.LedgerMetrics, logger *log.Entry) *Aggregator {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	if logger == nil {
		logger = log.WithField("component", "summary-aggregator")
	}
	return &Aggregator{spend: spend, maxLimit: maxLimit, metrics: m, logger: logger}
}

// ParseLimit разбирает сырой параметр limit. Пустое значение даёт DefaultLimit,
// значение вне 1..max отклоняется без усечения.
func (a *Aggregator) ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, a.limitError()
	}
	if err := a.validate(limit); err != nil {
		return 0, err
	}
	return limit, nil
}

// TopCustomersBySpend возвращает не более limit строк: total DESC, затем customer_id DESC.
func (a *Aggregator) TopCustomersBySpend(ctx context.Context, limit int) ([]domain.CustomerSpend, error) {
	if err := a.validate(limit); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := a.spend.TopCustomersBySpend(ctx, limit)
	a.metrics.RecordSummaryDuration(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("top customers by spend: %w", err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	a.logger.WithFields(log.Fields{"limit": limit, "rows": len(rows)}).Debug("summary built")
	return rows, nil
}

func (a *Aggregator) validate(limit int) error {
	if limit < 1 || limit > a.maxLimit {
		return a.limitError()
	}
	return nil
}

func (a *Aggregator) limitError() error {
	return &domain.ValidationError{
		Field:   "limit",
		Message: fmt.Sprintf("Ensure this value is an integer between 1 and %d.", a.maxLimit),
	}
}
