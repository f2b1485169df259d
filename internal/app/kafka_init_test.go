package app

import (
	"testing"

	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/orderpay/internal/messaging/kafka"
)

func TestConnectKafka_DisabledWithoutBrokers(t *testing.T) {
	for _, raw := range []string{"", " , ", ","} {
		producer, err := connectKafka(raw, quietEntry())
		if err != nil || producer != nil {
			t.Fatalf("%q: expected kafka to stay disabled, got %v %v", raw, producer, err)
		}
	}
}

func TestConnectKafka_UnreachableBroker(t *testing.T) {
	producer, err := connectKafka("127.0.0.1:1", quietEntry())
	if err == nil {
		t.Fatal("expected error for unreachable broker")
	}
	if producer != nil {
		t.Fatal("producer must be nil on error")
	}
}

func TestDisconnectKafka(t *testing.T) {
	disconnectKafka(nil, quietEntry())
	disconnectKafka(kafka.NewProducerFromSync(mocks.NewSyncProducer(t, nil), quietEntry()), quietEntry())
}
