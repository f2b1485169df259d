package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderpay/internal/gateway"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

const (
	defaultOutboxTopic = "orderpay.events"
	defaultDLQTopic    = "orderpay.dlq"
)

// GatewayCredentials — ключи провайдеров. Симулированные шлюзы их только хранят.
type GatewayCredentials struct {
	PaypalAPIKey string
	PaypalSecret string
	StripeAPIKey string
	StripeSecret string
	PayMobAPIKey string
	PayMobSecret string
}

func (c GatewayCredentials) settings() gateway.Settings {
	return gateway.Settings{
		Paypal: gateway.Credentials{APIKey: c.PaypalAPIKey, Secret: c.PaypalSecret},
		Stripe: gateway.Credentials{APIKey: c.StripeAPIKey, Secret: c.StripeSecret},
		PayMob: gateway.Credentials{APIKey: c.PayMobAPIKey, Secret: c.PayMobSecret},
	}
}

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	PostgresMaxConns    int

	JWTSecret      string
	RequestTimeout time.Duration

	KafkaBrokers string
	OutboxTopic  string
	DLQTopic     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	Gateways GatewayCredentials
}

// DefaultConfig возвращает базовые адреса и параметры outbox.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		PostgresMaxConns:    25,
		RequestTimeout:      10 * time.Second,
		OutboxTopic:         defaultOutboxTopic,
		DLQTopic:            defaultDLQTopic,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		OutboxMaxPending:    10000,
	}
}

// Validate проверяет настройки, без которых сервис не стартует. Возвращает все найденные ошибки сразу.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}

	switch storageDriver(c) {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errPostgresDSNRequired)
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver: %s", c.StorageDriver))
	}

	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request timeout must be >= 0, got %s", c.RequestTimeout))
	}
	if c.OutboxBatchSize < 0 || c.OutboxMaxAttempts < 0 || c.OutboxMaxPending < 0 {
		errs = append(errs, errors.New("outbox limits must be >= 0"))
	}
	return errors.Join(errs...)
}
