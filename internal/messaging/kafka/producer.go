package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	clientID          = "orderpay"
	producerMaxRetry  = 5
	producerRetryWait = 200 * time.Millisecond
)

// ErrProducerNotInitialized возвращается при публикации через nil Producer.
var ErrProducerNotInitialized = errors.New("kafka producer is not initialized")

// Producer публикует события в Kafka поверх sarama.SyncProducer.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	now    func() time.Time
}

// saramaConfig собирает настройки idempotent producer: подтверждение от всех реплик и ровно один запрос в полёте.
func saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_8_0_0

	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = producerMaxRetry
	cfg.Producer.Retry.Backoff = producerRetryWait
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// NewProducer подключается к брокерам.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: no brokers configured")
	}
	sync, err := sarama.NewSyncProducer(brokers, saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer for %v: %w", brokers, err)
	}
	return NewProducerFromSync(sync, nil), nil
}

// NewProducerFromSync оборачивает готовый SyncProducer, в тестах это sarama/mocks.
func NewProducerFromSync(sync sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{sync: sync, logger: logger, now: time.Now}
}

// PublishEvent кодирует event в JSON и отправляет без заголовков.
func (p *Producer) PublishEvent(topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", topic, err)
	}
	return p.PublishRaw(topic, key, value, nil)
}

// PublishRaw отправляет готовое значение. Заголовки пишутся в порядке имён.
func (p *Producer) PublishRaw(topic, key string, value []byte, headers map[string]string) error {
	if p == nil || p.sync == nil {
		return ErrProducerNotInitialized
	}

	msg := p.message(topic, key, value, headers)
	fields := log.Fields{"topic": topic, "key": key}

	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("kafka message delivered")
	return nil
}

func (p *Producer) message(topic, key string, value []byte, headers map[string]string) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: p.now(),
	}
	if len(headers) == 0 {
		return msg
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	msg.Headers = make([]sarama.RecordHeader, 0, len(names))
	for _, name := range names {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(headers[name])})
	}
	return msg
}

func (p *Producer) Close() error {
	if p == nil || p.sync == nil {
		return nil
	}
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
