package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

type spendRepository struct {
	db *sql.DB
}

// TopCustomersBySpend агрегирует оплаченные неархивные заказы активных клиентов
// одним сгруппированным запросом. LEFT JOIN оставляет клиентов без заказов с нулями.
func (r *spendRepository) TopCustomersBySpend(ctx context.Context, limit int) ([]domain.CustomerSpend, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.email, COUNT(o.id) AS order_count, COALESCE(SUM(o.total), 0) AS total
		FROM customers c
		LEFT JOIN orders o
		       ON o.customer_id = c.id
		      AND o.status = 'paid'
		      AND NOT o.archived
		WHERE c.is_active
		GROUP BY c.id, c.email
		ORDER BY total DESC, c.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top customers by spend: %w", err)
	}
	defer rows.Close()

	result := make([]domain.CustomerSpend, 0, limit)
	for rows.Next() {
		var row domain.CustomerSpend
		if err := rows.Scan(&row.CustomerID, &row.Email, &row.OrderCount, &row.Total); err != nil {
			return nil, fmt.Errorf("scan spend row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spend rows: %w", err)
	}
	return result, nil
}

var _ domain.SpendReader = (*spendRepository)(nil)
