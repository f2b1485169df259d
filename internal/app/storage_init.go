package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderpay/internal/health"
	"github.com/vladislavdragonenkov/orderpay/internal/storage/postgres"
)

var errPostgresDSNRequired = errors.New("postgres storage requires DSN")

// runtimeDependencies содержит репозитории выбранного драйвера.
// storageChecker == nil для хранилищ, которым нечего пинговать.
type runtimeDependencies struct {
	orders         domain.OrderRepository
	payments       domain.PaymentRepository
	outboxRepo     domain.OutboxRepository
	timelineRepo   domain.TimelineRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func storageDriver(cfg Config) string {
	if driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver)); driver != "" {
		return driver
	}
	return StorageDriverMemory
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch driver := storageDriver(cfg); driver {
	case StorageDriverMemory:
		logger.Info("используем in-memory хранилище")
		return newMemoryRuntime(), nil
	case StorageDriverPostgres:
		return openPostgresRuntime(ctx, cfg, logger.WithField("storage", driver))
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

func postgresPool(cfg Config) postgres.PoolOptions {
	pool := postgres.DefaultPoolOptions()
	if cfg.PostgresMaxConns > 0 {
		pool.MaxOpenConns, pool.MaxIdleConns = cfg.PostgresMaxConns, cfg.PostgresMaxConns
	}
	return pool
}

func openPostgresRuntime(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return runtimeDependencies{}, errPostgresDSNRequired
	}

	store, err := postgres.OpenWithPool(ctx, dsn, postgresPool(cfg))
	if err != nil {
		return runtimeDependencies{}, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
		}
		logger.Info("миграции postgres применены")
	}

	return runtimeDependencies{
		orders:         postgres.NewOrderRepository(store),
		payments:       postgres.NewPaymentRepository(store),
		outboxRepo:     postgres.NewOutboxRepository(store),
		timelineRepo:   postgres.NewTimelineRepository(store),
		storageChecker: healthcheck.NewPingChecker("postgres", 0, store.Ping),
		closeFn:        store.Close,
	}, nil
}

// newOutboxBacklogChecker переводит готовность в unhealthy, когда в outbox больше maxPending
// неотправленных сообщений. maxPending <= 0 снимает ограничение.
func newOutboxBacklogChecker(repo domain.OutboxRepository, maxPending int) healthcheck.Checker {
	return healthcheck.NewPingChecker("outbox", 0, func(ctx context.Context) error {
		stats, err := repo.Stats(ctx)
		switch {
		case err != nil:
			return fmt.Errorf("outbox stats: %w", err)
		case maxPending > 0 && stats.PendingCount > maxPending:
			return fmt.Errorf("outbox backlog %d exceeds limit %d", stats.PendingCount, maxPending)
		}
		return nil
	})
}
