package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderpay/internal/service/outbox"
)

// deadLetterValue собирает сообщение DLQ в том виде, в каком его пишет outbox worker.
func deadLetterValue(t *testing.T, outboxID, orderID string) []byte {
	t.Helper()

	letter, err := json.Marshal(outbox.DeadLetter{
		OutboxID:      outboxID,
		AggregateType: domain.AggregateOrder,
		AggregateID:   orderID,
		EventType:     domain.EventOrderCreated,
		Payload:       json.RawMessage(`{"order_id":"` + orderID + `"}`),
		PublishError:  "timeout",
		PublishedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	value, err := json.Marshal(kafka.NewEnvelope(domain.OutboxMessage{
		ID:            outboxID,
		AggregateType: domain.AggregateOrder,
		AggregateID:   orderID,
		EventType:     domain.EventOrderCreated,
		Payload:       letter,
	}, time.Now().UTC()))
	require.NoError(t, err)
	return value
}

func envelopeWith(t *testing.T, envelope kafka.Envelope) []byte {
	t.Helper()
	value, err := json.Marshal(envelope)
	require.NoError(t, err)
	return value
}

func TestDecodeDeadLetter_RestoresOriginalEvent(t *testing.T) {
	event, err := decodeDeadLetter(deadLetterValue(t, "outbox-1", "order-1"))
	require.NoError(t, err)
	require.Equal(t, "outbox-1", event.ID)
	require.Equal(t, domain.AggregateOrder, event.AggregateType)
	require.Equal(t, "order-1", event.AggregateID)
	require.Equal(t, domain.EventOrderCreated, event.EventType)
	require.JSONEq(t, `{"order_id":"order-1"}`, string(event.Payload))
}

func TestDecodeDeadLetter_FillsBlankFieldsFromEnvelope(t *testing.T) {
	letter, err := json.Marshal(outbox.DeadLetter{Payload: json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)

	event, err := decodeDeadLetter(envelopeWith(t, kafka.Envelope{
		ID:            "outbox-2",
		AggregateType: domain.AggregatePayment,
		AggregateID:   "order-2",
		EventType:     domain.EventPaymentProcessed,
		Payload:       letter,
	}))
	require.NoError(t, err)
	require.Equal(t, domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: domain.AggregatePayment,
		AggregateID:   "order-2",
		EventType:     domain.EventPaymentProcessed,
		Payload:       []byte(`{"x":1}`),
	}, event)
}

func TestDecodeDeadLetter_Rejects(t *testing.T) {
	cases := []struct {
		name        string
		value       []byte
		notLetter   bool
		errContains string
	}{
		{name: "not json", value: []byte("not-json"), notLetter: true},
		{name: "envelope without payload", value: []byte(`{"id":"x"}`), notLetter: true},
		{name: "null payload", value: []byte(`{"id":"x","payload":null}`), notLetter: true},
		{
			name:        "letter without original",
			value:       []byte(`{"id":"outbox-1","payload":{"outbox_id":"outbox-1","event_type":"order.created"}}`),
			errContains: "original event payload",
		},
		{
			name:        "payload is not a letter",
			value:       []byte(`{"id":"outbox-1","payload":[1,2]}`),
			errContains: "decode dead letter",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeDeadLetter(tc.value)
			if tc.notLetter {
				require.ErrorIs(t, err, errNotDeadLetter)
				return
			}
			require.ErrorContains(t, err, tc.errContains)
			require.NotErrorIs(t, err, errNotDeadLetter)
		})
	}
}
