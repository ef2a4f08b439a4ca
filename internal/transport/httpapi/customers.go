package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.deps.Customers.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse[customerResponse]{Results: mapSlice(customers, toCustomerResponse)})
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	customer := domain.Customer{Name: req.Name, Email: req.Email, IsActive: true}.Normalize()
	if req.IsActive != nil {
		customer.IsActive = *req.IsActive
	}
	if err := customer.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.deps.Customers.Create(r.Context(), customer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerResponse(created))
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	customer, err := h.deps.Customers.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func (h *handler) patchCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req patchCustomerRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.IsActive == nil {
		h.writeError(w, r, required("is_active"))
		return
	}

	customer, err := h.deps.Customers.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// deleteCustomer удаляет клиента вместе с его заказами и позициями.
func (h *handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := h.deps.CustomerDeleter.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
