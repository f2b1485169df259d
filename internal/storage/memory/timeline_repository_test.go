package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/storage/memory"
)

func TestTimelineRepository_OrdersByOccurred(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		append []domain.TimelineEvent
		want   []string
	}{
		{
			name: "out of order writes",
			append: []domain.TimelineEvent{
				{Type: domain.TimelinePaymentRecorded, Occurred: base.Add(2 * time.Minute)},
				{Type: domain.TimelineOrderCreated, Occurred: base},
				{Type: domain.TimelineOrderStatusChanged, Occurred: base.Add(time.Minute)},
			},
			want: []string{domain.TimelineOrderCreated, domain.TimelineOrderStatusChanged, domain.TimelinePaymentRecorded},
		},
		{
			name: "equal timestamps keep write order",
			append: []domain.TimelineEvent{
				{Type: domain.TimelineOrderCreated, Occurred: base},
				{Type: domain.TimelinePaymentRecorded, Occurred: base},
				{Type: domain.TimelineOrderStatusChanged, Occurred: base},
			},
			want: []string{domain.TimelineOrderCreated, domain.TimelinePaymentRecorded, domain.TimelineOrderStatusChanged},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := memory.NewTimelineRepository()
			for _, e := range tc.append {
				e.OrderID = "order-1"
				if err := repo.Append(ctx, e); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			if err := repo.Append(ctx, domain.TimelineEvent{OrderID: "order-2", Type: domain.TimelineOrderCreated, Occurred: base}); err != nil {
				t.Fatalf("append other order: %v", err)
			}

			list, err := repo.List(ctx, "order-1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != len(tc.want) {
				t.Fatalf("expected %d events, got %d", len(tc.want), len(list))
			}
			for i, e := range list {
				if e.Type != tc.want[i] {
					t.Fatalf("position %d: expected %s, got %s", i, tc.want[i], e.Type)
				}
			}
		})
	}
}

func TestTimelineRepository_ListUnknownAndCopy(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()

	empty, err := repo.List(ctx, "missing")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", empty, err)
	}

	if err := repo.Append(ctx, domain.TimelineEvent{OrderID: "order-1", Type: domain.TimelineOrderCreated}); err != nil {
		t.Fatalf("append: %v", err)
	}
	list, _ := repo.List(ctx, "order-1")
	if list[0].Occurred.IsZero() {
		t.Fatal("expected occurred to be filled")
	}

	list[0].Type = "mutated"
	again, _ := repo.List(ctx, "order-1")
	if again[0].Type != domain.TimelineOrderCreated {
		t.Fatal("List must return a copy")
	}
}
