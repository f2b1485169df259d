package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

var sampleTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	sync := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(sync, log.WithField("component", "kafka-producer-test"))
	producer.now = func() time.Time { return sampleTime }
	return producer, sync
}

func TestProducer_PublishEvent(t *testing.T) {
	cases := []struct {
		name    string
		expect  func(*mocks.SyncProducer)
		event   any
		failing bool
		wantErr error
	}{
		{
			name:   "delivered",
			expect: func(sp *mocks.SyncProducer) { sp.ExpectSendMessageAndSucceed() },
			event: domain.OrderEvent{
				OrderID:     "order-1",
				OwnerID:     "user-1",
				Status:      int(domain.OrderStatusConfirmed),
				StatusLabel: domain.OrderStatusConfirmed.Label(),
				TotalAmount: "251.00",
				OccurredAt:  sampleTime,
			},
		},
		{
			name:    "broker error",
			expect:  func(sp *mocks.SyncProducer) { sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers) },
			event:   domain.OrderEvent{OrderID: "order-2"},
			failing: true,
			wantErr: sarama.ErrOutOfBrokers,
		},
		{
			name:    "unencodable event",
			expect:  func(*mocks.SyncProducer) {},
			event:   make(chan int),
			failing: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			producer, sync := newTestProducer(t)
			tc.expect(sync)

			err := producer.PublishEvent(TopicOrderPayEvents, "key", tc.event)
			if !tc.failing {
				assert.NoError(t, err)
			} else if assert.Error(t, err) && tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			}
			require.NoError(t, producer.Close())
		})
	}
}

func TestProducer_MessageHeadersSortedByName(t *testing.T) {
	producer, sync := newTestProducer(t)
	defer func() { _ = sync.Close() }()

	msg := producer.message(TopicDeadLetterQueue, "order-1", []byte(`{}`), map[string]string{
		HeaderEventType:     domain.EventOrderCreated,
		HeaderAggregateType: domain.AggregateOrder,
	})

	assert.Equal(t, TopicDeadLetterQueue, msg.Topic)
	assert.Equal(t, sampleTime, msg.Timestamp)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, HeaderAggregateType, string(msg.Headers[0].Key))
	assert.Equal(t, domain.AggregateOrder, string(msg.Headers[0].Value))
	assert.Equal(t, HeaderEventType, string(msg.Headers[1].Key))

	bare := producer.message(TopicOrderPayEvents, "order-1", nil, nil)
	assert.Nil(t, bare.Headers)
}

func TestProducer_NilIsNotInitialized(t *testing.T) {
	var producer *Producer
	assert.ErrorIs(t, producer.PublishRaw(TopicOrderPayEvents, "k", nil, nil), ErrProducerNotInitialized)
	assert.NoError(t, producer.Close())

	_, err := NewProducer(nil)
	assert.Error(t, err)
}
