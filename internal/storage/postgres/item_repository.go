package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

type itemRepository struct {
	db *sql.DB
}

func (r *itemRepository) Add(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, sku, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, item.OrderID, item.SKU, item.Quantity, item.UnitPrice).Scan(&item.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.OrderItem{}, domain.ErrOrderNotFound
		}
		return domain.OrderItem{}, fmt.Errorf("insert order item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) Get(ctx context.Context, id int64) (domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.one(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, sku, quantity, unit_price
		FROM order_items
		WHERE id = $1
	`, id))
}

// Update меняет sku, количество и цену; order_id позиции не меняется.
func (r *itemRepository) Update(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.one(r.db.QueryRowContext(ctx, `
		UPDATE order_items
		SET sku = $2, quantity = $3, unit_price = $4
		WHERE id = $1
		RETURNING id, order_id, sku, quantity, unit_price
	`, item.ID, item.SKU, item.Quantity, item.UnitPrice))
}

func (r *itemRepository) Delete(ctx context.Context, id int64) (domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.one(r.db.QueryRowContext(ctx, `
		DELETE FROM order_items
		WHERE id = $1
		RETURNING id, order_id, sku, quantity, unit_price
	`, id))
}

func (r *itemRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return nil, domain.ErrOrderNotFound
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, sku, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) one(row *sql.Row) (domain.OrderItem, error) {
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItem{}, domain.ErrItemNotFound
		}
		return domain.OrderItem{}, fmt.Errorf("order item query: %w", err)
	}
	return item, nil
}

func scanItem(row rowScanner) (domain.OrderItem, error) {
	var item domain.OrderItem
	err := row.Scan(&item.ID, &item.OrderID, &item.SKU, &item.Quantity, &item.UnitPrice)
	return item, err
}

var _ domain.ItemRepository = (*itemRepository)(nil)
