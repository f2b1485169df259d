package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/metrics"
	"github.com/vladislavdragonenkov/orderpay/internal/storage/memory"
)

type failingOutbox struct {
	domain.OutboxRepository
}

func (failingOutbox) Enqueue(context.Context, domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("disk full")
}

func TestRecorder_TimelineAndOutbox(t *testing.T) {
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	rec := NewRecorder(timeline, outbox, metrics.NewServiceMetricsWithRegisterer(prometheus.NewRegistry()), nil)
	ctx := context.Background()

	occurred := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	rec.Timeline(ctx, "order-1", domain.TimelineOrderCreated, "", occurred)
	rec.Publish(ctx, domain.AggregateOrder, "order-1", domain.EventOrderCreated, map[string]string{"order_id": "order-1"})

	history, err := rec.History(ctx, "order-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Type != domain.TimelineOrderCreated || !history[0].Occurred.Equal(occurred) {
		t.Fatalf("unexpected history: %+v", history)
	}

	pending := outbox.AllPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox message, got %d", len(pending))
	}
	var payload map[string]string
	if err := json.Unmarshal(pending[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["order_id"] != "order-1" || pending[0].EventType != domain.EventOrderCreated {
		t.Fatalf("unexpected outbox message: %+v", pending[0])
	}
}

func TestRecorder_NilDependencies(t *testing.T) {
	rec := NewRecorder(nil, nil, nil, nil)
	ctx := context.Background()

	rec.Timeline(ctx, "order-1", domain.TimelineOrderCreated, "", time.Time{})
	rec.Publish(ctx, domain.AggregateOrder, "order-1", domain.EventOrderCreated, nil)

	history, err := rec.History(ctx, "order-1")
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %v err=%v", history, err)
	}

	var nilRecorder *Recorder
	nilRecorder.Timeline(ctx, "order-1", domain.TimelineOrderCreated, "", time.Time{})
	nilRecorder.Publish(ctx, domain.AggregateOrder, "order-1", domain.EventOrderCreated, nil)
}

func TestRecorder_EnqueueFailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rec := NewRecorder(nil, failingOutbox{}, nil, logrus.NewEntry(logger))

	rec.Publish(context.Background(), domain.AggregatePayment, "pay-1", domain.EventPaymentProcessed, map[string]string{})

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "enqueue event failed" {
		t.Fatalf("expected enqueue failure to be logged, got %+v", entry)
	}
	if entry.Data["event"] != domain.EventPaymentProcessed {
		t.Fatalf("unexpected log fields: %+v", entry.Data)
	}
}
