package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderpay/internal/service/outbox"
)

// errNotDeadLetter означает, что в DLQ лежит что-то кроме конверта с письмом; такие сообщения пропускаются молча.
var errNotDeadLetter = errors.New("message is not a dead letter envelope")

// decodeDeadLetter восстанавливает исходное outbox-событие из значения сообщения DLQ.
// Пустые поля письма заполняются метаданными конверта.
func decodeDeadLetter(value []byte) (domain.OutboxMessage, error) {
	var envelope kafka.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return domain.OutboxMessage{}, errNotDeadLetter
	}
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return domain.OutboxMessage{}, errNotDeadLetter
	}

	var letter outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(letter.Payload) == 0 {
		return domain.OutboxMessage{}, errors.New("dead letter does not contain original event payload")
	}

	event := letter.Message()
	fillBlank(&event.ID, envelope.ID)
	fillBlank(&event.AggregateType, envelope.AggregateType)
	fillBlank(&event.AggregateID, envelope.AggregateID)
	fillBlank(&event.EventType, envelope.EventType)
	return event, nil
}

func fillBlank(dst *string, fallback string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = fallback
	}
}
