package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

type customerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type itemResponse struct {
	ID        int64  `json:"id"`
	Order     int64  `json:"order"`
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type orderResponse struct {
	ID            int64          `json:"id"`
	Customer      int64          `json:"customer"`
	CustomerEmail string         `json:"customer_email"`
	Status        string         `json:"status"`
	Total         int64          `json:"total"`
	Archived      bool           `json:"archived"`
	Items         []itemResponse `json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type spendResponse struct {
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email"`
	OrderCount int64  `json:"order_count"`
	Total      int64  `json:"total"`
}

type timelineResponse struct {
	Type     string    `json:"type"`
	Detail   string    `json:"detail"`
	Occurred time.Time `json:"occurred"`
}

type resultsResponse[T any] struct {
	Results []T `json:"results"`
}

type createCustomerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive *bool  `json:"is_active"`
}

type patchCustomerRequest struct {
	IsActive *bool `json:"is_active"`
}

type createOrderRequest struct {
	Customer *int64 `json:"customer"`
	Status   string `json:"status"`
}

type patchOrderRequest struct {
	Status *string `json:"status"`
}

type itemRequest struct {
	Order     *int64  `json:"order"`
	SKU       *string `json:"sku"`
	Quantity  *int64  `json:"quantity"`
	UnitPrice *int64  `json:"unit_price"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Email: c.Email, IsActive: c.IsActive, CreatedAt: c.CreatedAt}
}

func toItemResponse(i domain.OrderItem) itemResponse {
	return itemResponse{
		ID:        i.ID,
		Order:     i.OrderID,
		SKU:       i.SKU,
		Quantity:  i.Quantity,
		UnitPrice: i.UnitPrice,
		LineTotal: i.LineTotal(),
	}
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, toItemResponse(item))
	}
	return orderResponse{
		ID:            o.ID,
		Customer:      o.CustomerID,
		CustomerEmail: o.CustomerEmail,
		Status:        string(o.Status),
		Total:         o.Total,
		Archived:      o.Archived,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
