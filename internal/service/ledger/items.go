package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

// ItemService изменяет позиции заказа и после каждой мутации пересчитывает сумму владельца.
type ItemService struct {
	items  domain.ItemRepository
	recalc *Recalculator
	logger *log.Entry
}

// NewItemService создаёт сервис позиций.
func NewItemService(items domain.ItemRepository, recalc *Recalculator, logger *log.Entry) *ItemService {
	if logger == nil {
		logger = log.WithField("component", "item-service")
	}
	return &ItemService{items: items, recalc: recalc, logger: logger}
}

// Get возвращает позицию по id.
func (s *ItemService) Get(ctx context.Context, id int64) (domain.OrderItem, error) {
	return s.items.Get(ctx, id)
}

// ListByOrder возвращает позиции заказа.
func (s *ItemService) ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	return s.items.ListByOrder(ctx, orderID)
}

// Add создаёт позицию и пересчитывает сумму заказа.
func (s *ItemService) Add(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	item.SKU = strings.TrimSpace(item.SKU)
	if err := item.Validate(); err != nil {
		return domain.OrderItem{}, err
	}

	saved, err := s.items.Add(ctx, item)
	if err != nil {
		return domain.OrderItem{}, err
	}
	if err := s.recalc.RecalculateTotal(ctx, saved.OrderID); err != nil {
		if errors.Is(err, domain.ErrTotalOverflow) {
			s.rollback(ctx, saved.OrderID, func() error {
				_, delErr := s.items.Delete(ctx, saved.ID)
				return delErr
			})
			return domain.OrderItem{}, errTotalOutOfRange()
		}
		return domain.OrderItem{}, fmt.Errorf("add item %d: %w", saved.ID, err)
	}

	s.logger.WithFields(log.Fields{"order_id": saved.OrderID, "item_id": saved.ID}).Debug("item added")
	return saved, nil
}

// Update меняет sku, количество и цену позиции и пересчитывает сумму заказа.
func (s *ItemService) Update(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	item.SKU = strings.TrimSpace(item.SKU)
	if err := item.Validate(); err != nil {
		return domain.OrderItem{}, err
	}

	previous, err := s.items.Get(ctx, item.ID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	saved, err := s.items.Update(ctx, item)
	if err != nil {
		return domain.OrderItem{}, err
	}
	if err := s.recalc.RecalculateTotal(ctx, saved.OrderID); err != nil {
		if errors.Is(err, domain.ErrTotalOverflow) {
			s.rollback(ctx, saved.OrderID, func() error {
				_, updErr := s.items.Update(ctx, previous)
				return updErr
			})
			return domain.OrderItem{}, errTotalOutOfRange()
		}
		return domain.OrderItem{}, fmt.Errorf("update item %d: %w", saved.ID, err)
	}
	return saved, nil
}

// Delete удаляет позицию и пересчитывает сумму её бывшего заказа.
func (s *ItemService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.items.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.recalc.RecalculateTotal(ctx, deleted.OrderID); err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}

	s.logger.WithFields(log.Fields{"order_id": deleted.OrderID, "item_id": id}).Debug("item deleted")
	return nil
}

// rollback отменяет мутацию позиции, сумма которой не поместилась в total,
// и пересчитывает заказ заново.
func (s *ItemService) rollback(ctx context.Context, orderID int64, undo func() error) {
	logger := s.logger.WithField("order_id", orderID)
	if err := undo(); err != nil {
		logger.WithError(err).Error("failed to roll back item mutation after total overflow")
	}
	if err := s.recalc.RecalculateTotal(ctx, orderID); err != nil {
		logger.WithError(err).Warn("total recalculation after rollback failed")
	}
}

func errTotalOutOfRange() error {
	return &domain.ValidationError{
		Field:   "non_field_errors",
		Message: "Order total would exceed the maximum allowed value.",
	}
}
