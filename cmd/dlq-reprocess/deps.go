package main

import (
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/messaging/kafka"
)

// offsetClient и partitionSource сужают sarama.Client и sarama.Consumer до того, что нужно replay.
type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaPartitionSource struct {
	consumer sarama.Consumer
}

func (s saramaPartitionSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s saramaPartitionSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

// replayDependencies собирает Kafka-клиенты одного прогона. publisher создаётся только для -execute.
type replayDependencies struct {
	client    offsetClient
	consumer  partitionSource
	publisher domain.OutboxPublisher
	closers   []func() error
}

// close закрывает ресурсы в обратном порядке создания.
func (d replayDependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

var newReplayDependencies = func(cfg config) (replayDependencies, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = "orderpay-dlq-reprocess"
	saramaCfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, saramaCfg)
	if err != nil {
		return replayDependencies{}, fmt.Errorf("create kafka client: %w", err)
	}
	deps := replayDependencies{client: client, closers: []func() error{client.Close}}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		deps.close()
		return replayDependencies{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps.consumer = saramaPartitionSource{consumer: consumer}
	deps.closers = append(deps.closers, consumer.Close)

	if cfg.execute {
		producer, err := kafka.NewProducer(cfg.brokers)
		if err != nil {
			deps.close()
			return replayDependencies{}, fmt.Errorf("create kafka producer: %w", err)
		}
		deps.publisher = kafka.NewOutboxPublisher(producer, cfg.targetTopic)
		deps.closers = append(deps.closers, producer.Close)
	}
	return deps, nil
}
