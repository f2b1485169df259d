package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/app"
	"github.com/vladislavdragonenkov/orderpay/internal/version"
)

const (
	envHTTPAddr            = "ORDERPAY_HTTP_ADDR"
	envGRPCAddr            = "ORDERPAY_GRPC_ADDR"
	envMetricsAddr         = "ORDERPAY_METRICS_ADDR"
	envStorageDriver       = "ORDERPAY_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERPAY_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERPAY_POSTGRES_AUTO_MIGRATE"
	envPostgresMaxConns    = "ORDERPAY_POSTGRES_MAX_CONNS"
	envJWTSecret           = "ORDERPAY_JWT_SECRET"
	envRequestTimeout      = "ORDERPAY_REQUEST_TIMEOUT"
	envKafkaBrokers        = "ORDERPAY_KAFKA_BROKERS"
	envOutboxTopic         = "ORDERPAY_OUTBOX_TOPIC"
	envDLQTopic            = "ORDERPAY_DLQ_TOPIC"
	envOutboxPollInterval  = "ORDERPAY_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "ORDERPAY_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "ORDERPAY_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "ORDERPAY_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending    = "ORDERPAY_OUTBOX_MAX_PENDING"
	envPaypalAPIKey        = "PAYPAL_API_KEY"
	envPaypalSecret        = "PAYPAL_SECRET"
	envStripeAPIKey        = "STRIPE_API_KEY"
	envStripeSecret        = "STRIPE_SECRET"
	envPayMobAPIKey        = "PAYMOB_API_KEY"
	envPayMobSecret        = "PAYMOB_SECRET"
)

// envLookup совпадает по сигнатуре с os.LookupEnv.
type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения пропускаются с предупреждением, остаётся значение по умолчанию.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}

	positiveInt := func(v int) bool { return v > 0 }
	nonNegativeInt := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	integer(envPostgresMaxConns, &cfg.PostgresMaxConns, positiveInt, "must be > 0")
	str(envJWTSecret, &cfg.JWTSecret)
	duration(envRequestTimeout, &cfg.RequestTimeout, nonNegativeDuration, "must be >= 0")

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envOutboxTopic, &cfg.OutboxTopic)
	str(envDLQTopic, &cfg.DLQTopic)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positiveInt, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positiveInt, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegativeInt, "must be >= 0")

	str(envPaypalAPIKey, &cfg.Gateways.PaypalAPIKey)
	str(envPaypalSecret, &cfg.Gateways.PaypalSecret)
	str(envStripeAPIKey, &cfg.Gateways.StripeAPIKey)
	str(envStripeSecret, &cfg.Gateways.StripeSecret)
	str(envPayMobAPIKey, &cfg.Gateways.PayMobAPIKey)
	str(envPayMobSecret, &cfg.Gateways.PayMobSecret)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", raw)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", raw)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}

func main() {
	setupLogger()

	// .env опционален: в контейнере переменные приходят из окружения.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("не удалось прочитать .env")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warnf("некорректная настройка, используем значение по умолчанию: %s", warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka_enabled":  cfg.KafkaBrokers != "",
	}).WithFields(version.Get().Fields()).Info("запускаем order-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order-service остановлен")
}
