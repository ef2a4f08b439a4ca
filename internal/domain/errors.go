package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: базовая ошибка отсутствующей записи.
	ErrNotFound = errors.New("not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	// ErrItemNotFound возвращается, если позиция заказа не найдена.
	ErrItemNotFound = fmt.Errorf("order item %w", ErrNotFound)
	// ErrValidation: базовая ошибка некорректного параметра.
	ErrValidation = errors.New("validation failed")
	// ErrEmailTaken: email клиента уже занят.
	ErrEmailTaken = errors.New("customer with this email already exists")
	// ErrIntegrityViolation: сохранённая сумма заказа разошлась с позициями.
	ErrIntegrityViolation = errors.New("integrity violation")
	// ErrTotalOverflow: сумма позиций заказа не помещается в int64.
	ErrTotalOverflow = errors.New("order total out of range")
	// ErrOutboxPublish: ошибка при работе с сообщением outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError описывает отклонённый параметр запроса.
type ValidationError struct {
	Field   string
	Message string
	// Allowed заполняется для полей с перечислимыми значениями.
	Allowed []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TotalDriftError фиксирует нарушение инварианта суммы заказа.
// Overflow означает, что сумма позиций непредставима и Expected не заполнен.
type TotalDriftError struct {
	OrderID  int64
	Stored   int64
	Expected int64
	Overflow bool
}

func (e *TotalDriftError) Error() string {
	if e.Overflow {
		return fmt.Sprintf("order %d total drift: stored=%d expected=out of range", e.OrderID, e.Stored)
	}
	return fmt.Sprintf("order %d total drift: stored=%d expected=%d", e.OrderID, e.Stored, e.Expected)
}

func (e *TotalDriftError) Is(target error) bool {
	return target == ErrIntegrityViolation || (e.Overflow && target == ErrTotalOverflow)
}

// IsNotFound проверяет, относится ли ошибка к отсутствующей записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, относится ли ошибка к валидации параметров.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
