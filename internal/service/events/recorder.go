// Package events записывает побочные следы операций: timeline заказа и сообщения outbox.
package events

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/metrics"
)

// Recorder фиксирует события после успешной записи в хранилище.
// Ошибки timeline и outbox только логируются: основная операция уже завершена.
// Любая из зависимостей может быть nil.
type Recorder struct {
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	metrics  *metrics.ServiceMetrics
	logger   *log.Entry
}

// NewRecorder создаёт Recorder.
func NewRecorder(
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	serviceMetrics *metrics.ServiceMetrics,
	logger *log.Entry,
) *Recorder {
	if logger == nil {
		logger = log.WithField("component", "event-recorder")
	}
	return &Recorder{
		timeline: timeline,
		outbox:   outbox,
		metrics:  serviceMetrics,
		logger:   logger,
	}
}

// Timeline добавляет событие в историю заказа.
func (r *Recorder) Timeline(ctx context.Context, orderID, eventType, reason string, occurred time.Time) {
	if r == nil || r.timeline == nil {
		return
	}
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := r.timeline.Append(ctx, event); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	r.metrics.RecordTimelineEvent()
}

// Publish кладёт событие в outbox. Без outbox ничего не делает.
func (r *Recorder) Publish(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) {
	if r == nil || r.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := r.outbox.Enqueue(ctx, msg); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("enqueue event failed")
		return
	}
	r.metrics.RecordOutboxEvent()
}

// History возвращает timeline заказа; без репозитория история пуста.
func (r *Recorder) History(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if r == nil || r.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return r.timeline.List(ctx, orderID)
}
