package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

// TopicPublisher пишет outbox-сообщения в один topic, завернув их в Envelope.
type TopicPublisher struct {
	producer *Producer
	topic    string
	clock    func() time.Time
}

// NewOutboxPublisher возвращает паблишер для topic; пустой topic означает TopicOrderPayEvents.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderPayEvents
	}
	return &TopicPublisher{
		producer: producer,
		topic:    topic,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish использует AggregateID как ключ, чтобы события одного заказа попадали в одну партицию.
func (p *TopicPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return ErrProducerNotInitialized
	}

	value, err := json.Marshal(NewEnvelope(msg, p.clock()))
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", msg.ID, err)
	}
	return p.producer.PublishRaw(p.topic, partitionKey(msg), value, envelopeHeaders(msg))
}

func partitionKey(msg domain.OutboxMessage) string {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	return msg.ID
}

func envelopeHeaders(msg domain.OutboxMessage) map[string]string {
	return map[string]string{
		HeaderEventType:     msg.EventType,
		HeaderAggregateType: msg.AggregateType,
	}
}

var _ domain.OutboxPublisher = (*TopicPublisher)(nil)
