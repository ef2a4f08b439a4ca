package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// OrderStatus описывает состояние заказа в леджере.
type OrderStatus string

const (
	// OrderStatusDraft: заказ собирается, оплата ещё не поступила.
	OrderStatusDraft OrderStatus = "draft"
	// OrderStatusPaid: заказ оплачен и участвует в рейтинге клиентов.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderStatusDraft:     {},
	OrderStatusPaid:      {},
	OrderStatusShipped:   {},
	OrderStatusCancelled: {},
}

// Valid проверяет, что статус входит в перечисление.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// AllowedOrderStatuses возвращает допустимые статусы в отсортированном порядке.
func AllowedOrderStatuses() []string {
	result := make([]string, 0, len(orderStatuses))
	for status := range orderStatuses {
		result = append(result, string(status))
	}
	sort.Strings(result)
	return result
}

// ParseOrderStatus обрезает пробелы и проверяет значение по перечислению.
// Ошибка: *ValidationError с именем поля field и списком допустимых значений.
func ParseOrderStatus(field, raw string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(raw))
	if status.Valid() {
		return status, nil
	}
	allowed := AllowedOrderStatuses()
	return "", &ValidationError{
		Field:   field,
		Message: "Invalid status. Use one of: " + strings.Join(allowed, ", ") + ".",
		Allowed: allowed,
	}
}

// Верхние границы полей позиции, как у положительного целого столбца.
const (
	MaxItemQuantity  int64 = math.MaxInt32
	MaxItemUnitPrice int64 = math.MaxInt32
)

const maxValueMessage = "Ensure this value is less than or equal to 2147483647."

// OrderItem: позиция заказа. Денежные значения в минимальных единицах валюты.
type OrderItem struct {
	ID        int64
	OrderID   int64
	SKU       string
	Quantity  int64
	UnitPrice int64
}

// LineTotal возвращает quantity × unit_price. Для позиции, прошедшей Validate,
// произведение помещается в int64.
func (i OrderItem) LineTotal() int64 {
	return i.Quantity * i.UnitPrice
}

// Validate проверяет поля позиции перед записью.
func (i OrderItem) Validate() error {
	if strings.TrimSpace(i.SKU) == "" {
		return &ValidationError{Field: "sku", Message: "This field may not be blank."}
	}
	if i.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "Ensure this value is greater than 0."}
	}
	if i.Quantity > MaxItemQuantity {
		return &ValidationError{Field: "quantity", Message: maxValueMessage}
	}
	if i.UnitPrice < 0 {
		return &ValidationError{Field: "unit_price", Message: "Ensure this value is greater than or equal to 0."}
	}
	if i.UnitPrice > MaxItemUnitPrice {
		return &ValidationError{Field: "unit_price", Message: maxValueMessage}
	}
	return nil
}

// Order: заказ клиента с денормализованной суммой Total.
type Order struct {
	ID            int64
	CustomerID    int64
	CustomerEmail string
	Status        OrderStatus
	Total         int64
	Archived      bool
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CalculateTotal суммирует line total по переданным позициям.
// Выход произведения или суммы за пределы int64 даёт ErrTotalOverflow.
func CalculateTotal(items []OrderItem) (int64, error) {
	var total int64
	for _, item := range items {
		line, ok := mulInt64(item.Quantity, item.UnitPrice)
		if !ok {
			return 0, ErrTotalOverflow
		}
		if total, ok = addInt64(total, line); !ok {
			return 0, ErrTotalOverflow
		}
	}
	return total, nil
}

// VerifyTotal сверяет сохранённую сумму с позициями заказа.
// Расхождение или непредставимая сумма возвращаются как *TotalDriftError.
func (o Order) VerifyTotal() error {
	expected, err := CalculateTotal(o.Items)
	if err != nil {
		return &TotalDriftError{OrderID: o.ID, Stored: o.Total, Overflow: true}
	}
	if expected != o.Total {
		return &TotalDriftError{OrderID: o.ID, Stored: o.Total, Expected: expected}
	}
	return nil
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}
