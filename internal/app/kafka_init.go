package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/messaging/kafka"
)

// connectKafka возвращает nil producer без ошибки, если брокеры не заданы.
// Ошибку подключения Run не считает фатальной: сервис продолжает работу без публикации событий.
func connectKafka(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	list := kafka.ParseBrokers(brokers)
	if len(list) == 0 {
		logger.Info("kafka brokers are not configured, outbox publishing disabled")
		return nil, nil
	}

	producer, err := kafka.NewProducer(list)
	if err != nil {
		logger.WithError(err).WithField("brokers", list).Warn("kafka unavailable, outbox publishing disabled")
		return nil, err
	}
	logger.WithField("brokers", list).Info("kafka producer connected")
	return producer, nil
}

func disconnectKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Info("kafka producer closed")
}
