package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

// DeadLetter лежит в payload сообщения DLQ: исходное событие и причина отказа.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	PublishedAt   time.Time       `json:"dlq_published_at"`
}

// Message восстанавливает исходное outbox-сообщение.
func (d DeadLetter) Message() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       []byte(d.Payload),
	}
}

// wrapDeadLetter упаковывает неотправленное сообщение в конверт для DLQ.
// Идентификатор и ключ агрегата сохраняются, чтобы DLQ партиционировалась так же, как основной топик.
func wrapDeadLetter(msg domain.OutboxMessage, cause error, now time.Time) (domain.OutboxMessage, error) {
	original := json.RawMessage(msg.Payload)
	if len(original) == 0 {
		original = json.RawMessage("null")
	}

	body, err := json.Marshal(DeadLetter{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       original,
		PublishError:  cause.Error(),
		PublishedAt:   now.UTC(),
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal dead letter %s: %w", msg.ID, err)
	}

	wrapped := msg
	wrapped.Payload = body
	return wrapped, nil
}
