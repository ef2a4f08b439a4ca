// Package seed наполняет хранилище демонстрационными клиентами, заказами и позициями.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/service/ledger"
	"github.com/vladislavdragonenkov/ledger/internal/service/orders"
)

const skuCount = 200

var unitPrices = []int64{199, 499, 999, 1499, 2499}

// Plan задаёт объём генерации.
type Plan struct {
	Customers         int
	OrdersPerCustomer int
	ItemsPerOrder     int
}

// Validate проверяет, что объёмы неотрицательны и клиентов хотя бы один.
func (p Plan) Validate() error {
	var errs []error
	if p.Customers < 1 {
		errs = append(errs, errors.New("customers must be >= 1"))
	}
	if p.OrdersPerCustomer < 0 {
		errs = append(errs, errors.New("orders per customer must be >= 0"))
	}
	if p.ItemsPerOrder < 0 {
		errs = append(errs, errors.New("items per order must be >= 0"))
	}
	return errors.Join(errs...)
}

// Result итог генерации.
type Result struct {
	Customers int
	Orders    int
	Items     int
	// OrderIDs идентификаторы созданных заказов в порядке создания.
	OrderIDs []int64
}

// Seeder создаёт данные через сервисы, поэтому суммы заказов считает Recalculator.
type Seeder struct {
	customers domain.CustomerRepository
	lifecycle *orders.Lifecycle
	items     *ledger.ItemService
	rnd       *rand.Rand
	logger    *log.Entry
}

// NewSeeder создаёт генератор. rnd=nil означает источник, зависящий от времени.
func NewSeeder(customers domain.CustomerRepository, lifecycle *orders.Lifecycle, items *ledger.ItemService, rnd *rand.Rand, logger *log.Entry) *Seeder {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = log.WithField("component", "seed")
	}
	return &Seeder{customers: customers, lifecycle: lifecycle, items: items, rnd: rnd, logger: logger}
}

// Run создаёт plan.Customers клиентов user<N>@example.com, где N продолжает
// нумерацию после наибольшего существующего id клиента.
// При ошибке возвращается частичный Result: уже созданные записи не удаляются.
func (s *Seeder) Run(ctx context.Context, plan Plan) (Result, error) {
	if err := plan.Validate(); err != nil {
		return Result{}, err
	}

	start, err := s.nextIndex(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if err := s.fill(ctx, plan, start, &res); err != nil {
		// Записи, созданные до ошибки, остаются в хранилище: каждая мутация
		// коммитится своим репозиторием, общей транзакции нет.
		s.logger.WithError(err).WithFields(log.Fields{
			"customers": res.Customers,
			"orders":    res.Orders,
			"items":     res.Items,
		}).Warn("seed interrupted, partial data kept")
		return res, err
	}

	s.logger.WithFields(log.Fields{
		"customers": res.Customers,
		"orders":    res.Orders,
		"items":     res.Items,
	}).Info("seed completed")
	return res, nil
}

func (s *Seeder) fill(ctx context.Context, plan Plan, start int64, res *Result) error {
	for i := 0; i < plan.Customers; i++ {
		n := start + int64(i)
		customer, err := s.customers.Create(ctx, domain.Customer{
			Name:     fmt.Sprintf("User %d", n),
			Email:    fmt.Sprintf("user%d@example.com", n),
			IsActive: true,
		}.Normalize())
		if err != nil {
			return fmt.Errorf("create customer %d: %w", n, err)
		}
		res.Customers++

		for j := 0; j < plan.OrdersPerCustomer; j++ {
			order, err := s.lifecycle.Create(ctx, customer.ID, string(PickStatus(s.rnd.Float64())))
			if err != nil {
				return fmt.Errorf("create order for customer %d: %w", customer.ID, err)
			}
			res.Orders++
			res.OrderIDs = append(res.OrderIDs, order.ID)

			for k := 0; k < plan.ItemsPerOrder; k++ {
				if _, err := s.items.Add(ctx, s.randomItem(order.ID)); err != nil {
					return fmt.Errorf("add item to order %d: %w", order.ID, err)
				}
				res.Items++
			}
		}
	}
	return nil
}

// PickStatus отображает r из [0,1) на статус: paid 55%, draft 35%, shipped 10%.
func PickStatus(r float64) domain.OrderStatus {
	switch {
	case r < 0.55:
		return domain.OrderStatusPaid
	case r < 0.90:
		return domain.OrderStatusDraft
	default:
		return domain.OrderStatusShipped
	}
}

func (s *Seeder) nextIndex(ctx context.Context) (int64, error) {
	existing, err := s.customers.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list customers: %w", err)
	}
	var maxID int64
	for _, c := range existing {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return maxID + 1, nil
}

func (s *Seeder) randomItem(orderID int64) domain.OrderItem {
	return domain.OrderItem{
		OrderID:   orderID,
		SKU:       fmt.Sprintf("SKU-%d", s.rnd.Intn(skuCount)+1),
		Quantity:  int64(s.rnd.Intn(5) + 1),
		UnitPrice: unitPrices[s.rnd.Intn(len(unitPrices))],
	}
}
