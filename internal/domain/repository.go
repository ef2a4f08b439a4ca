package domain

import (
	"context"
	"time"
)

// OrderFilter: уже проверенные параметры выборки заказов для списка.
// Архивные заказы исключаются, если не задан IncludeArchived.
type OrderFilter struct {
	// Status пустой, если фильтр по статусу не задан.
	Status OrderStatus
	// Email: подстрока email клиента, сравнение без учёта регистра.
	Email string
	// IncludeArchived нужен только сверке сумм; HTTP-список его не выставляет.
	IncludeArchived bool
}

// CustomerRepository описывает хранилище клиентов.
// Удаление вынесено в CustomerDeleter: код заказов его не получает.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context) ([]Customer, error)
	SetActive(ctx context.Context, id int64, active bool) (Customer, error)
}

// CustomerDeleter удаляет клиента каскадно вместе с его заказами.
type CustomerDeleter interface {
	Delete(ctx context.Context, id int64) error
}

// OrderReader отдаёт заказы для чтения.
type OrderReader interface {
	// Get возвращает заказ с позициями, включая архивные, или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает заказы по фильтру, отсортированные по id DESC.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// OrderLifecycleStore: единственные мутаторы состояния заказа.
// Каждый метод меняет только указанный заказ и его updated_at.
// SetStatus и Archive сравнивают и меняют состояние атомарно; changed=false
// означает, что заказ уже был в целевом состоянии и не изменён.
type OrderLifecycleStore interface {
	OrderReader
	Create(ctx context.Context, customerID int64, status OrderStatus, at time.Time) (Order, error)
	SetStatus(ctx context.Context, id int64, status OrderStatus, at time.Time) (order Order, changed bool, err error)
	Archive(ctx context.Context, id int64, at time.Time) (order Order, changed bool, err error)
}

// ItemRepository хранит позиции заказов. Пересчёт суммы выполняет вызывающий код.
type ItemRepository interface {
	Add(ctx context.Context, item OrderItem) (OrderItem, error)
	Get(ctx context.Context, id int64) (OrderItem, error)
	Update(ctx context.Context, item OrderItem) (OrderItem, error)
	// Delete удаляет позицию и возвращает её последнее состояние.
	Delete(ctx context.Context, id int64) (OrderItem, error)
	ListByOrder(ctx context.Context, orderID int64) ([]OrderItem, error)
}

// TotalStore атомарно пересчитывает сумму заказа.
type TotalStore interface {
	// RecalculateTotal читает позиции и сохраняет total с updated_at в одной
	// эксклюзивной по заказу операции. ErrOrderNotFound, если заказа нет.
	RecalculateTotal(ctx context.Context, orderID int64, at time.Time) (int64, error)
}

// SpendReader строит рейтинг клиентов одним сгруппированным запросом.
type SpendReader interface {
	TopCustomersBySpend(ctx context.Context, limit int) ([]CustomerSpend, error)
}

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}
