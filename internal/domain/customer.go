package domain

import (
	"strings"
	"time"
)

// Customer: владелец заказов.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	IsActive  bool
	CreatedAt time.Time
}

// Normalize обрезает пробелы в имени и email.
func (c Customer) Normalize() Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// Validate проверяет обязательные поля клиента.
func (c Customer) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "This field may not be blank."}
	}
	if c.Email == "" || !strings.Contains(c.Email, "@") {
		return &ValidationError{Field: "email", Message: "Enter a valid email address."}
	}
	return nil
}

// CustomerSpend: строка рейтинга клиентов по оплаченным заказам.
type CustomerSpend struct {
	CustomerID int64
	Email      string
	OrderCount int64
	Total      int64
}
