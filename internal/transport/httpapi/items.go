package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

func (h *handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := req.toNewItem()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	saved, err := h.deps.Items.Add(r.Context(), item)
	if errors.Is(err, domain.ErrOrderNotFound) {
		err = invalidReference("order", item.OrderID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(saved))
}

func (h *handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	item, err := h.deps.Items.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// patchItem частично обновляет позицию; перенос в другой заказ запрещён.
func (h *handler) patchItem(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	current, err := h.deps.Items.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Order != nil && *req.Order != current.OrderID {
		h.writeError(w, r, &domain.ValidationError{Field: "order", Message: "Items cannot be moved between orders."})
		return
	}
	if req.SKU != nil {
		current.SKU = *req.SKU
	}
	if req.Quantity != nil {
		current.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		current.UnitPrice = *req.UnitPrice
	}

	saved, err := h.deps.Items.Update(r.Context(), current)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(saved))
}

func (h *handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := h.deps.Items.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req itemRequest) toNewItem() (domain.OrderItem, error) {
	switch {
	case req.Order == nil:
		return domain.OrderItem{}, required("order")
	case req.SKU == nil:
		return domain.OrderItem{}, required("sku")
	case req.Quantity == nil:
		return domain.OrderItem{}, required("quantity")
	case req.UnitPrice == nil:
		return domain.OrderItem{}, required("unit_price")
	}
	return domain.OrderItem{
		OrderID:   *req.Order,
		SKU:       *req.SKU,
		Quantity:  *req.Quantity,
		UnitPrice: *req.UnitPrice,
	}, nil
}
