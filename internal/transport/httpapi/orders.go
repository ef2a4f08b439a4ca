package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := h.deps.Orders.List(r.Context(), query.Get("status"), query.Get("email"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse[orderResponse]{Results: mapSlice(list, toOrderResponse)})
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Customer == nil {
		h.writeError(w, r, required("customer"))
		return
	}

	order, err := h.deps.Lifecycle.Create(r.Context(), *req.Customer, req.Status)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		err = invalidReference("customer", *req.Customer)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

type summaryResponse struct {
	Limit int             `json:"limit"`
	Rows  []spendResponse `json:"rows"`
}

func (h *handler) orderSummary(w http.ResponseWriter, r *http.Request) {
	limit, err := h.deps.Summary.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.deps.Summary.TopCustomersBySpend(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Limit: limit,
		Rows: mapSlice(rows, func(row domain.CustomerSpend) spendResponse {
			return spendResponse{CustomerID: row.CustomerID, Email: row.Email, OrderCount: row.OrderCount, Total: row.Total}
		}),
	})
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	order, err := h.deps.Orders.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) patchOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req patchOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Status == nil {
		h.writeError(w, r, required("status"))
		return
	}

	order, err := h.deps.Lifecycle.SetStatus(r.Context(), id, *req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	order, err := h.deps.Lifecycle.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": order.ID, "status": order.Status})
}

func (h *handler) archiveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	order, err := h.deps.Lifecycle.Archive(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": order.ID, "archived": order.Archived})
}

func (h *handler) orderTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if _, err := h.deps.Orders.Get(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	events, err := h.deps.Timeline.List(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse[timelineResponse]{
		Results: mapSlice(events, func(e domain.TimelineEvent) timelineResponse {
			return timelineResponse{Type: e.Type, Detail: e.Detail, Occurred: e.Occurred}
		}),
	})
}

// invalidReference ошибка ссылки на несуществующий объект в теле запроса.
func invalidReference(field string, id int64) error {
	return &domain.ValidationError{
		Field:   field,
		Message: fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id),
	}
}
