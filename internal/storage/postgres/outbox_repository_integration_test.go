package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Outbox()

	generated, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "1",
		EventType:     "order.cancelled",
		Payload:       []byte(`{"order_id":1}`),
	})
	if err != nil {
		t.Fatalf("enqueue without id: %v", err)
	}
	if generated.ID == "" {
		t.Fatal("expected generated id for outbox message")
	}

	fixed, err := repo.Enqueue(ctx, domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: "order",
		AggregateID:   "2",
		EventType:     "order.archived",
	})
	if err != nil {
		t.Fatalf("enqueue with id: %v", err)
	}
	if fixed.ID != "outbox-fixed-id" {
		t.Fatalf("expected fixed id, got %q", fixed.ID)
	}

	pending, err := repo.PullPending(ctx, 0)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats before marks: %+v", stats)
	}

	if err := repo.MarkSent(ctx, generated.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(ctx, fixed.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats after marks: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats after marks: %+v", stats)
	}
}

func TestOutboxRepository_PostgresMissingRows(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Outbox()

	if err := repo.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
	if err := repo.MarkFailed(ctx, "missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
}
