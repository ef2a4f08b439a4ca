package domain_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

// helper для заказа с двумя позициями и корректной суммой.
func makeOrder() domain.Order {
	items := []domain.OrderItem{
		{ID: 1, OrderID: 10, SKU: "SKU-1", Quantity: 2, UnitPrice: 500},
		{ID: 2, OrderID: 10, SKU: "SKU-2", Quantity: 3, UnitPrice: 199},
	}
	return domain.Order{
		ID:         10,
		CustomerID: 1,
		Status:     domain.OrderStatusDraft,
		Total:      1597,
		Items:      items,
	}
}

func TestAllowedOrderStatuses_Sorted(t *testing.T) {
	want := []string{"cancelled", "draft", "paid", "shipped"}
	if got := domain.AllowedOrderStatuses(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected statuses: got=%v want=%v", got, want)
	}
}

func TestParseOrderStatus(t *testing.T) {
	cases := []struct {
		raw     string
		want    domain.OrderStatus
		wantErr bool
	}{
		{raw: "paid", want: domain.OrderStatusPaid},
		{raw: "  shipped ", want: domain.OrderStatusShipped},
		{raw: "cancelled", want: domain.OrderStatusCancelled},
		{raw: "PAID", wantErr: true},
		{raw: "not-a-real-status", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := domain.ParseOrderStatus("status", tc.raw)
			if tc.wantErr {
				var vErr *domain.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if vErr.Field != "status" {
					t.Fatalf("unexpected field: %s", vErr.Field)
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatal("validation error must match ErrValidation")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestParseOrderStatus_MessageListsSortedValues(t *testing.T) {
	_, err := domain.ParseOrderStatus("status", "bogus")
	want := "status: Invalid status. Use one of: cancelled, draft, paid, shipped."
	if err == nil || err.Error() != want {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestOrderItem_LineTotalAndValidate(t *testing.T) {
	item := domain.OrderItem{SKU: "SKU-1", Quantity: 4, UnitPrice: 250}
	if item.LineTotal() != 1000 {
		t.Fatalf("unexpected line total %d", item.LineTotal())
	}
	if err := item.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	cases := map[string]domain.OrderItem{
		"sku":        {SKU: " ", Quantity: 1},
		"quantity":   {SKU: "A", Quantity: 0},
		"unit_price": {SKU: "A", Quantity: 1, UnitPrice: -1},
	}
	for field, item := range cases {
		var vErr *domain.ValidationError
		if err := item.Validate(); !errors.As(err, &vErr) || vErr.Field != field {
			t.Fatalf("expected validation error for %s, got %v", field, err)
		}
	}
}

func TestOrderVerifyTotal(t *testing.T) {
	order := makeOrder()
	if err := order.VerifyTotal(); err != nil {
		t.Fatalf("expected consistent total, got %v", err)
	}

	order.Items = order.Items[:1]
	err := order.VerifyTotal()
	if !errors.Is(err, domain.ErrIntegrityViolation) {
		t.Fatalf("expected integrity violation, got %v", err)
	}
	var drift *domain.TotalDriftError
	if !errors.As(err, &drift) || drift.Expected != 1000 || drift.Stored != 1597 {
		t.Fatalf("unexpected drift payload: %+v", drift)
	}
}

func TestCalculateTotal_Empty(t *testing.T) {
	if got, err := domain.CalculateTotal(nil); err != nil || got != 0 {
		t.Fatalf("expected 0 for no items, got %d (%v)", got, err)
	}
}

func TestCalculateTotal_Overflow(t *testing.T) {
	maxItem := domain.OrderItem{SKU: "A", Quantity: domain.MaxItemQuantity, UnitPrice: domain.MaxItemUnitPrice}

	cases := map[string][]domain.OrderItem{
		"product":  {{SKU: "A", Quantity: 1 << 32, UnitPrice: 1 << 32}},
		"sum":      {maxItem, maxItem, maxItem},
		"big line": {{SKU: "A", Quantity: 3, UnitPrice: 1 << 62}},
	}
	for name, items := range cases {
		if _, err := domain.CalculateTotal(items); !errors.Is(err, domain.ErrTotalOverflow) {
			t.Fatalf("%s: expected ErrTotalOverflow, got %v", name, err)
		}
	}

	got, err := domain.CalculateTotal([]domain.OrderItem{maxItem, maxItem})
	if err != nil || got != 2*maxItem.LineTotal() {
		t.Fatalf("two max items must fit: got %d (%v)", got, err)
	}
}

func TestOrderItem_ValidateUpperBounds(t *testing.T) {
	cases := map[string]domain.OrderItem{
		"quantity":   {SKU: "A", Quantity: domain.MaxItemQuantity + 1, UnitPrice: 1},
		"unit_price": {SKU: "A", Quantity: 1, UnitPrice: domain.MaxItemUnitPrice + 1},
	}
	for field, item := range cases {
		var vErr *domain.ValidationError
		if err := item.Validate(); !errors.As(err, &vErr) || vErr.Field != field {
			t.Fatalf("expected validation error for %s, got %v", field, err)
		}
		if vErr.Message != "Ensure this value is less than or equal to 2147483647." {
			t.Fatalf("unexpected message %q", vErr.Message)
		}
	}

	edge := domain.OrderItem{SKU: "A", Quantity: domain.MaxItemQuantity, UnitPrice: domain.MaxItemUnitPrice}
	if err := edge.Validate(); err != nil {
		t.Fatalf("bounds are inclusive, got %v", err)
	}
}

func TestOrderVerifyTotal_Overflow(t *testing.T) {
	order := domain.Order{ID: 9, Total: 42, Items: []domain.OrderItem{{SKU: "A", Quantity: 3, UnitPrice: 1 << 62}}}

	err := order.VerifyTotal()
	if !errors.Is(err, domain.ErrIntegrityViolation) || !errors.Is(err, domain.ErrTotalOverflow) {
		t.Fatalf("expected overflow drift, got %v", err)
	}
}

func TestNotFoundErrors(t *testing.T) {
	for _, err := range []error{domain.ErrOrderNotFound, domain.ErrCustomerNotFound, domain.ErrItemNotFound} {
		if !domain.IsNotFound(err) {
			t.Fatalf("%v must match ErrNotFound", err)
		}
	}
	if domain.ErrOrderNotFound.Error() != "order not found" {
		t.Fatalf("unexpected message: %s", domain.ErrOrderNotFound)
	}
	if domain.IsNotFound(domain.ErrEmailTaken) {
		t.Fatal("email taken is not a not-found error")
	}
}

func TestCustomerValidate(t *testing.T) {
	c := domain.Customer{Name: "  Alice ", Email: " alice@example.com "}.Normalize()
	if c.Name != "Alice" || c.Email != "alice@example.com" {
		t.Fatalf("unexpected normalize result: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (domain.Customer{Name: "Bob", Email: "bob"}).Validate(); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
