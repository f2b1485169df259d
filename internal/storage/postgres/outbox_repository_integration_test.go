package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

func enqueueOrderEvents(t *testing.T, repo domain.OutboxRepository, orderID string, eventTypes ...string) []domain.OutboxMessage {
	t.Helper()

	stored := make([]domain.OutboxMessage, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		msg, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
			AggregateType: domain.AggregateOrder,
			AggregateID:   orderID,
			EventType:     eventType,
			Payload:       []byte(fmt.Sprintf(`{"order_id":%q}`, orderID)),
		})
		if err != nil {
			t.Fatalf("enqueue %s: %v", eventType, err)
		}
		stored = append(stored, msg)
	}
	return stored
}

func TestOutboxRepository_PostgresPreservesWriteOrder(t *testing.T) {
	repo := NewOutboxRepository(integrationStore(t))
	ctx := context.Background()

	// Вставки идут подряд без пауз: порядок должен держаться даже при равных created_at.
	want := []string{domain.EventOrderCreated, domain.EventOrderUpdated, domain.EventOrderUpdated, domain.EventOrderDeleted}
	stored := enqueueOrderEvents(t, repo, "order-seq", want...)

	pending, err := repo.PullPending(ctx, 0)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != len(want) {
		t.Fatalf("expected %d pending, got %d", len(want), len(pending))
	}
	for i, msg := range pending {
		if msg.ID != stored[i].ID || msg.EventType != want[i] {
			t.Fatalf("position %d: expected %s/%s, got %s/%s", i, stored[i].ID, want[i], msg.ID, msg.EventType)
		}
	}

	firstTwo, err := repo.PullPending(ctx, 2)
	if err != nil {
		t.Fatalf("pull with limit: %v", err)
	}
	if len(firstTwo) != 2 || firstTwo[0].ID != stored[0].ID {
		t.Fatalf("limit must return the oldest records, got %+v", firstTwo)
	}
}

func TestOutboxRepository_PostgresMarksAndStats(t *testing.T) {
	repo := NewOutboxRepository(integrationStore(t))
	ctx := context.Background()

	fixed, err := repo.Enqueue(ctx, domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: domain.AggregatePayment,
		AggregateID:   "order-pay",
		EventType:     domain.EventPaymentProcessed,
		Payload:       []byte(`{"status":1}`),
	})
	if err != nil {
		t.Fatalf("enqueue with id: %v", err)
	}
	if fixed.ID != "outbox-fixed-id" {
		t.Fatalf("caller-supplied id must be kept, got %q", fixed.ID)
	}
	generated := enqueueOrderEvents(t, repo, "order-stats", domain.EventOrderCreated)[0]
	if generated.ID == "" {
		t.Fatal("expected generated id")
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

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull after marks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("sent and failed messages must leave the queue, got %d", len(pending))
	}
	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats after marks: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty backlog, got %+v", stats)
	}

	for name, mark := range map[string]func(context.Context, string) error{
		"sent":   repo.MarkSent,
		"failed": repo.MarkFailed,
	} {
		if err := mark(ctx, "missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
			t.Fatalf("mark %s on missing id: expected ErrOutboxPublish, got %v", name, err)
		}
	}
}
