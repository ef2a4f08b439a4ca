package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

// Ledger: in-memory хранилище клиентов, заказов и позиций для разработки и тестов.
// Карты защищены mu; пересчёт суммы дополнительно сериализуется по заказу.
type Ledger struct {
	mu        sync.RWMutex
	customers map[int64]domain.Customer
	orders    map[int64]domain.Order
	items     map[int64]domain.OrderItem

	nextCustomerID int64
	nextOrderID    int64
	nextItemID     int64

	orderLocks sync.Map // int64 -> *sync.Mutex
}

// NewLedger возвращает пустое in-memory хранилище.
func NewLedger() *Ledger {
	return &Ledger{
		customers: make(map[int64]domain.Customer),
		orders:    make(map[int64]domain.Order),
		items:     make(map[int64]domain.OrderItem),
	}
}

// Ping всегда успешен для in-memory хранилища.
func (l *Ledger) Ping(context.Context) error {
	return nil
}

// Customers возвращает представление хранилища как CustomerRepository.
func (l *Ledger) Customers() domain.CustomerRepository { return customerView{l} }

// CustomerDeleter возвращает представление для каскадного удаления клиентов.
func (l *Ledger) CustomerDeleter() domain.CustomerDeleter { return customerView{l} }

// Orders возвращает представление хранилища как OrderLifecycleStore.
func (l *Ledger) Orders() domain.OrderLifecycleStore { return orderView{l} }

// Items возвращает представление хранилища как ItemRepository.
func (l *Ledger) Items() domain.ItemRepository { return itemView{l} }

// Totals возвращает представление для атомарного пересчёта суммы.
func (l *Ledger) Totals() domain.TotalStore { return orderView{l} }

// Spend возвращает представление для рейтинга клиентов.
func (l *Ledger) Spend() domain.SpendReader { return spendView{l} }

func (l *Ledger) orderLock(orderID int64) *sync.Mutex {
	lock, _ := l.orderLocks.LoadOrStore(orderID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// itemsOfLocked возвращает позиции заказа по возрастанию id. Требует l.mu.
func (l *Ledger) itemsOfLocked(orderID int64) []domain.OrderItem {
	result := make([]domain.OrderItem, 0)
	for _, item := range l.items {
		if item.OrderID == orderID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// hydrateLocked добавляет к заказу позиции и email клиента. Требует l.mu.
func (l *Ledger) hydrateLocked(order domain.Order) domain.Order {
	order.Items = l.itemsOfLocked(order.ID)
	order.CustomerEmail = l.customers[order.CustomerID].Email
	return order
}

type customerView struct{ l *Ledger }

func (v customerView) Create(_ context.Context, customer domain.Customer) (domain.Customer, error) {
	l := v.l
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.customers {
		if strings.EqualFold(existing.Email, customer.Email) {
			return domain.Customer{}, domain.ErrEmailTaken
		}
	}

	l.nextCustomerID++
	customer.ID = l.nextCustomerID
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	l.customers[customer.ID] = customer
	return customer, nil
}

func (v customerView) Get(_ context.Context, id int64) (domain.Customer, error) {
	v.l.mu.RLock()
	defer v.l.mu.RUnlock()

	customer, ok := v.l.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (v customerView) List(context.Context) ([]domain.Customer, error) {
	v.l.mu.RLock()
	defer v.l.mu.RUnlock()

	result := make([]domain.Customer, 0, len(v.l.customers))
	for _, customer := range v.l.customers {
		result = append(result, customer)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (v customerView) SetActive(_ context.Context, id int64, active bool) (domain.Customer, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	customer, ok := v.l.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	customer.IsActive = active
	v.l.customers[id] = customer
	return customer, nil
}

// Delete удаляет клиента, его заказы и их позиции.
func (v customerView) Delete(_ context.Context, id int64) error {
	l := v.l
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.customers[id]; !ok {
		return domain.ErrCustomerNotFound
	}
	delete(l.customers, id)

	for orderID, order := range l.orders {
		if order.CustomerID != id {
			continue
		}
		delete(l.orders, orderID)
		l.orderLocks.Delete(orderID)
		for itemID, item := range l.items {
			if item.OrderID == orderID {
				delete(l.items, itemID)
			}
		}
	}
	return nil
}

type orderView struct{ l *Ledger }

func (v orderView) Create(_ context.Context, customerID int64, status domain.OrderStatus, at time.Time) (domain.Order, error) {
	l := v.l
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.customers[customerID]; !ok {
		return domain.Order{}, domain.ErrCustomerNotFound
	}

	l.nextOrderID++
	order := domain.Order{
		ID:         l.nextOrderID,
		CustomerID: customerID,
		Status:     status,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	l.orders[order.ID] = order
	return l.hydrateLocked(order), nil
}

func (v orderView) Get(_ context.Context, id int64) (domain.Order, error) {
	v.l.mu.RLock()
	defer v.l.mu.RUnlock()

	order, ok := v.l.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return v.l.hydrateLocked(order), nil
}

func (v orderView) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	l := v.l
	l.mu.RLock()
	defer l.mu.RUnlock()

	needle := strings.ToLower(filter.Email)
	result := make([]domain.Order, 0)
	for _, order := range l.orders {
		if order.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(l.customers[order.CustomerID].Email), needle) {
			continue
		}
		result = append(result, l.hydrateLocked(order))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (v orderView) SetStatus(_ context.Context, id int64, status domain.OrderStatus, at time.Time) (domain.Order, bool, error) {
	return v.update(id, func(order *domain.Order) bool {
		if order.Status == status {
			return false
		}
		order.Status = status
		order.UpdatedAt = at
		return true
	})
}

func (v orderView) Archive(_ context.Context, id int64, at time.Time) (domain.Order, bool, error) {
	return v.update(id, func(order *domain.Order) bool {
		if order.Archived {
			return false
		}
		order.Archived = true
		order.UpdatedAt = at
		return true
	})
}

// update применяет mutate под l.mu; mutate сообщает, изменил ли он заказ.
func (v orderView) update(id int64, mutate func(order *domain.Order) bool) (domain.Order, bool, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	order, ok := v.l.orders[id]
	if !ok {
		return domain.Order{}, false, domain.ErrOrderNotFound
	}
	changed := mutate(&order)
	if changed {
		v.l.orders[id] = order
	}
	return v.l.hydrateLocked(order), changed, nil
}

// RecalculateTotal пересчитывает сумму под замком заказа: чтение позиций и запись
// total не перемежаются с другим пересчётом того же заказа.
func (v orderView) RecalculateTotal(_ context.Context, orderID int64, at time.Time) (int64, error) {
	l := v.l
	lock := l.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	l.mu.RLock()
	_, ok := l.orders[orderID]
	total, err := domain.CalculateTotal(l.itemsOfLocked(orderID))
	l.mu.RUnlock()
	if !ok {
		l.orderLocks.Delete(orderID)
		return 0, domain.ErrOrderNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("order %d: %w", orderID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		l.orderLocks.Delete(orderID)
		return 0, domain.ErrOrderNotFound
	}
	order.Total = total
	order.UpdatedAt = at
	l.orders[orderID] = order
	return total, nil
}

type itemView struct{ l *Ledger }

func (v itemView) Add(_ context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	if _, ok := v.l.orders[item.OrderID]; !ok {
		return domain.OrderItem{}, domain.ErrOrderNotFound
	}
	v.l.nextItemID++
	item.ID = v.l.nextItemID
	v.l.items[item.ID] = item
	return item, nil
}

func (v itemView) Get(_ context.Context, id int64) (domain.OrderItem, error) {
	v.l.mu.RLock()
	defer v.l.mu.RUnlock()

	item, ok := v.l.items[id]
	if !ok {
		return domain.OrderItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

// Update меняет sku, количество и цену. Принадлежность заказу не меняется.
func (v itemView) Update(_ context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	current, ok := v.l.items[item.ID]
	if !ok {
		return domain.OrderItem{}, domain.ErrItemNotFound
	}
	current.SKU = item.SKU
	current.Quantity = item.Quantity
	current.UnitPrice = item.UnitPrice
	v.l.items[item.ID] = current
	return current, nil
}

func (v itemView) Delete(_ context.Context, id int64) (domain.OrderItem, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	item, ok := v.l.items[id]
	if !ok {
		return domain.OrderItem{}, domain.ErrItemNotFound
	}
	delete(v.l.items, id)
	return item, nil
}

func (v itemView) ListByOrder(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	v.l.mu.RLock()
	defer v.l.mu.RUnlock()

	if _, ok := v.l.orders[orderID]; !ok {
		return nil, domain.ErrOrderNotFound
	}
	return v.l.itemsOfLocked(orderID), nil
}

type spendView struct{ l *Ledger }

// TopCustomersBySpend агрегирует оплаченные неархивные заказы за один проход.
func (v spendView) TopCustomersBySpend(_ context.Context, limit int) ([]domain.CustomerSpend, error) {
	l := v.l
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := make(map[int64]*domain.CustomerSpend, len(l.customers))
	for id, customer := range l.customers {
		if !customer.IsActive {
			continue
		}
		rows[id] = &domain.CustomerSpend{CustomerID: id, Email: customer.Email}
	}
	for _, order := range l.orders {
		if order.Status != domain.OrderStatusPaid || order.Archived {
			continue
		}
		row, ok := rows[order.CustomerID]
		if !ok {
			continue
		}
		row.OrderCount++
		row.Total += order.Total
	}

	result := make([]domain.CustomerSpend, 0, len(rows))
	for _, row := range rows {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].CustomerID > result[j].CustomerID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var (
	_ domain.CustomerRepository  = customerView{}
	_ domain.CustomerDeleter     = customerView{}
	_ domain.OrderLifecycleStore = orderView{}
	_ domain.TotalStore          = orderView{}
	_ domain.ItemRepository      = itemView{}
	_ domain.SpendReader         = spendView{}
	_ domain.Pinger              = (*Ledger)(nil)
)
