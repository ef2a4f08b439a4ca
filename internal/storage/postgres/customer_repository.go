package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

type customerRepository struct {
	db *sql.DB
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, customer.Name, customer.Email, customer.IsActive).Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrEmailTaken
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, is_active, created_at
		FROM customers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, is_active, created_at
		FROM customers
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) SetActive(ctx context.Context, id int64, active bool) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, `
		UPDATE customers
		SET is_active = $2
		WHERE id = $1
		RETURNING id, name, email, is_active, created_at
	`, id, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return customer, nil
}

// Delete удаляет клиента; заказы и позиции удаляются каскадом на уровне схемы.
func (r *customerRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var customer domain.Customer
	err := row.Scan(&customer.ID, &customer.Name, &customer.Email, &customer.IsActive, &customer.CreatedAt)
	return customer, err
}

var (
	_ domain.CustomerRepository = (*customerRepository)(nil)
	_ domain.CustomerDeleter    = (*customerRepository)(nil)
)
