package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/storage/memory"
)

func TestPaymentRepository_CreateRequiresOwnedOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	payments := memory.NewPaymentRepository(store)
	now := time.Now().UTC()

	order := newOrder("order-1", "user-1", now)
	if err := orders.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payment := domain.NewPaymentFromOutcome("pay-1", order.ID, order.TotalAmount, domain.GatewayPaypal, domain.GatewayOutcome{Success: true}, now)
	if err := payments.Create(ctx, "user-2", payment); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign owner, got %v", err)
	}

	payment.OrderID = "missing"
	if err := payments.Create(ctx, "user-1", payment); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for missing order, got %v", err)
	}
}

func TestPaymentRepository_ListScopedAndFiltered(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	payments := memory.NewPaymentRepository(store)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := newOrder("order-1", "user-1", base)
	second := newOrder("order-2", "user-1", base)
	foreign := newOrder("order-3", "user-2", base)
	for _, o := range []domain.Order{first, second, foreign} {
		if err := orders.Create(ctx, o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	records := []struct {
		id, owner, orderID string
		at                 time.Time
	}{
		{"pay-1", "user-1", first.ID, base.Add(time.Minute)},
		{"pay-2", "user-1", second.ID, base.Add(2 * time.Minute)},
		{"pay-3", "user-1", first.ID, base.Add(3 * time.Minute)},
		{"pay-4", "user-2", foreign.ID, base.Add(4 * time.Minute)},
	}
	for _, rec := range records {
		p := domain.NewPaymentFromOutcome(rec.id, rec.orderID, first.TotalAmount, domain.GatewayStripe, domain.GatewayOutcome{Message: "Payment declined"}, rec.at)
		if err := payments.Create(ctx, rec.owner, p); err != nil {
			t.Fatalf("payment create failed: %v", err)
		}
	}

	page, err := payments.List(ctx, "user-1", domain.PaymentFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 payments, got %d", page.Total)
	}
	if page.Items[0].ID != "pay-3" || page.Items[2].ID != "pay-1" {
		t.Fatalf("expected newest first, got %s..%s", page.Items[0].ID, page.Items[2].ID)
	}

	page, err = payments.List(ctx, "user-1", domain.PaymentFilter{OrderID: first.ID})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 payments for order-1, got %d", page.Total)
	}

	page, err = payments.List(ctx, "user-1", domain.PaymentFilter{OrderID: foreign.ID})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("foreign order payments must be hidden, got %d", page.Total)
	}
}
