package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

const orderSelect = `
	SELECT o.id, o.customer_id, c.email, o.status, o.total, o.archived, o.created_at, o.updated_at
	FROM orders o
	JOIN customers c ON c.id = o.customer_id`

type orderRepository struct {
	db *sql.DB
}

func (r *orderRepository) Create(ctx context.Context, customerID int64, status domain.OrderStatus, at time.Time) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, status, total, archived, created_at, updated_at)
		VALUES ($1, $2, 0, FALSE, $3, $3)
		RETURNING id
	`, customerID, string(status), at).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Order{}, domain.ErrCustomerNotFound
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return r.get(ctx, id)
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.get(ctx, id)
}

func (r *orderRepository) get(ctx context.Context, id int64) (domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = make([]domain.OrderItem, 0)
	}
	return order, nil
}

// List выбирает неархивные заказы одним запросом и догружает позиции вторым.
func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(orderSelect)
	if filter.IncludeArchived {
		query.WriteString(` WHERE TRUE`)
	} else {
		query.WriteString(` WHERE NOT o.archived`)
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&query, ` AND o.status = $%d`, len(args))
	}
	if filter.Email != "" {
		args = append(args, escapeLike(filter.Email))
		fmt.Fprintf(&query, ` AND c.email ILIKE '%%' || $%d || '%%' ESCAPE '\'`, len(args))
	}
	query.WriteString(` ORDER BY o.id DESC`)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = make([]domain.OrderItem, 0)
		}
	}
	return orders, nil
}

// SetStatus меняет статус, только если он отличается от текущего.
func (r *orderRepository) SetStatus(ctx context.Context, id int64, status domain.OrderStatus, at time.Time) (domain.Order, bool, error) {
	return r.update(ctx, id, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $2`, string(status), at)
}

// Archive помечает заказ архивным, только если он ещё не в архиве.
func (r *orderRepository) Archive(ctx context.Context, id int64, at time.Time) (domain.Order, bool, error) {
	return r.update(ctx, id, `UPDATE orders SET archived = TRUE, updated_at = $2 WHERE id = $1 AND NOT archived`, at)
}

// update выполняет условный UPDATE. Проверка и запись идут одним оператором,
// поэтому из конкурентных вызовов строку меняет ровно один.
// Ноль затронутых строк означает либо отсутствие заказа, либо целевое состояние.
func (r *orderRepository) update(ctx context.Context, id int64, query string, args ...any) (domain.Order, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("rows affected: %w", err)
	}
	order, err := r.get(ctx, id)
	if err != nil {
		return domain.Order{}, false, err
	}
	return order, affected > 0, nil
}

// RecalculateTotal блокирует строку заказа и в той же транзакции пересчитывает total.
// UPDATE выполняется отдельным запросом после FOR UPDATE, поэтому видит позиции,
// закоммиченные до получения блокировки.
func (r *orderRepository) RecalculateTotal(ctx context.Context, orderID int64, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			UPDATE orders
			SET total = (
			        SELECT COALESCE(SUM(quantity * unit_price), 0)
			        FROM order_items
			        WHERE order_id = $1
			    ),
			    updated_at = $2
			WHERE id = $1
			RETURNING total
		`, orderID, at).Scan(&total)
		if pgErrorCode(err) == pgNumericOutOfRange {
			return fmt.Errorf("order %d: %w", orderID, domain.ErrTotalOverflow)
		}
		if err != nil {
			return fmt.Errorf("update order total: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, sku, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return result, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	err := row.Scan(
		&order.ID, &order.CustomerID, &order.CustomerEmail, &status,
		&order.Total, &order.Archived, &order.CreatedAt, &order.UpdatedAt,
	)
	order.Status = domain.OrderStatus(status)
	return order, err
}

// escapeLike экранирует метасимволы LIKE, чтобы email искался как литеральная подстрока.
func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

var (
	_ domain.OrderLifecycleStore = (*orderRepository)(nil)
	_ domain.TotalStore          = (*orderRepository)(nil)
)
