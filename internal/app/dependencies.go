package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/gateway"
	"github.com/vladislavdragonenkov/orderpay/internal/metrics"
	"github.com/vladislavdragonenkov/orderpay/internal/service/events"
	"github.com/vladislavdragonenkov/orderpay/internal/service/order"
	"github.com/vladislavdragonenkov/orderpay/internal/service/payment"
	"github.com/vladislavdragonenkov/orderpay/internal/storage/memory"
)

// Dependencies содержит сервисы приложения.
type Dependencies struct {
	Orders   *order.Manager
	Payments *payment.Processor
	Recorder *events.Recorder
	Gateways *gateway.Registry
	Metrics  *metrics.ServiceMetrics
	Logger   *log.Entry
}

// NewDependencies создаёт сервисы поверх in-memory хранилища с симулированными шлюзами.
// Outbox не подключается: публиковать события некуда.
func NewDependencies(logger *log.Entry) *Dependencies {
	return newDependencies(
		newMemoryRuntime(),
		gateway.NewSimulatedRegistry(gateway.Settings{}),
		nil,
		metrics.NewServiceMetrics(),
		logger,
	)
}

func newMemoryRuntime() runtimeDependencies {
	store := memory.NewStore()
	return runtimeDependencies{
		orders:       memory.NewOrderRepository(store),
		payments:     memory.NewPaymentRepository(store),
		outboxRepo:   memory.NewOutboxRepository(),
		timelineRepo: memory.NewTimelineRepository(),
		closeFn:      func() error { return nil },
	}
}

// newDependencies связывает репозитории, шлюзы и метрики в сервисы.
// outbox == nil отключает запись событий для брокера.
func newDependencies(
	rt runtimeDependencies,
	gateways *gateway.Registry,
	outbox domain.OutboxRepository,
	serviceMetrics *metrics.ServiceMetrics,
	logger *log.Entry,
) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	recorder := events.NewRecorder(rt.timelineRepo, outbox, serviceMetrics, logger.WithField("layer", "events"))

	orders := order.NewManager(rt.orders, logger.WithField("layer", "orders"),
		order.WithRecorder(recorder),
		order.WithMetrics(serviceMetrics),
	)
	payments := payment.NewProcessor(rt.orders, rt.payments, gateways, logger.WithField("layer", "payments"),
		payment.WithRecorder(recorder),
		payment.WithMetrics(serviceMetrics),
	)

	return &Dependencies{
		Orders:   orders,
		Payments: payments,
		Recorder: recorder,
		Gateways: gateways,
		Metrics:  serviceMetrics,
		Logger:   logger,
	}
}

// logGateways пишет в лог зарегистрированные шлюзы и наличие у них ключей.
func logGateways(registry *gateway.Registry, logger *log.Entry) {
	for _, kind := range registry.Supported() {
		gw, err := registry.Resolve(kind)
		if err != nil {
			continue
		}
		fields := log.Fields{"gateway": gw.Name(), "code": int(kind)}
		if sim, ok := gw.(*gateway.Simulated); ok {
			fields["credentials_configured"] = sim.Credentials().Configured()
		}
		logger.WithFields(fields).Info("payment gateway registered")
	}
}
