package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStoreForIntegrationTest(t)

	customer, err := store.Customers().Create(ctx, domain.Customer{Name: "Alice", Email: "alice@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	order, err := store.Orders().Create(ctx, customer.ID, domain.OrderStatusDraft, time.Now().UTC())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	timeline := store.Timeline()
	later := time.Now().UTC().Add(time.Minute).Round(time.Microsecond)
	if err := timeline.Append(ctx, domain.TimelineEvent{OrderID: order.ID, Type: "archived", Detail: "archived=true", Occurred: later}); err != nil {
		t.Fatalf("append explicit occurred: %v", err)
	}
	if err := timeline.Append(ctx, domain.TimelineEvent{OrderID: order.ID, Type: "cancelled", Detail: "status=cancelled"}); err != nil {
		t.Fatalf("append zero occurred: %v", err)
	}

	events, err := timeline.List(ctx, order.ID)
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "cancelled" || events[1].Type != "archived" {
		t.Fatalf("timeline must be chronological: %+v", events)
	}
	if events[1].Detail != "archived=true" || !events[1].Occurred.Equal(later) {
		t.Fatalf("unexpected archived event: %+v", events[1])
	}

	err = timeline.Append(ctx, domain.TimelineEvent{OrderID: order.ID + 100, Type: "cancelled"})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for unknown order, got %v", err)
	}
}
