package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/gateway"
	healthcheck "github.com/vladislavdragonenkov/orderpay/internal/health"
	"github.com/vladislavdragonenkov/orderpay/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderpay/internal/metrics"
	"github.com/vladislavdragonenkov/orderpay/internal/service/outbox"
	httpapi "github.com/vladislavdragonenkov/orderpay/internal/transport/http"
	"github.com/vladislavdragonenkov/orderpay/internal/version"
)

const (
	shutdownTimeout        = 5 * time.Second
	readinessProbeInterval = 5 * time.Second
)

// Run поднимает REST API, gRPC health, метрики и (при наличии Kafka) outbox worker.
// Возвращает ctx.Err() после штатной остановки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rt, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if rt.closeFn == nil {
			return
		}
		if err := rt.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	serviceMetrics := metrics.NewServiceMetrics()

	// Без брокера события в outbox не пишутся: их некому забирать.
	var outboxRepo domain.OutboxRepository
	kafkaProducer, _ := connectKafka(cfg.KafkaBrokers, logger)
	var outboxCancel context.CancelFunc
	var outboxDone <-chan struct{}
	if kafkaProducer != nil {
		outboxRepo = rt.outboxRepo
		worker := newOutboxWorker(cfg, outboxRepo, kafkaProducer, serviceMetrics, logger)
		outboxCancel, outboxDone = startOutboxWorker(ctx, worker)
	}

	registry := gateway.NewSimulatedRegistry(cfg.Gateways.settings())
	logGateways(registry, logger)
	deps := newDependencies(rt, registry, outboxRepo, serviceMetrics, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if rt.storageChecker != nil {
		healthHandler.RegisterChecker("storage", rt.storageChecker)
	}
	if outboxRepo != nil {
		healthHandler.RegisterChecker("outbox", newOutboxBacklogChecker(outboxRepo, cfg.OutboxMaxPending))
	}

	apiApp := httpapi.NewApp(deps.Orders, deps.Payments, httpapi.Config{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        serviceMetrics,
		Logger:         logger.WithField("layer", "http"),
	})

	grpcServer, healthServer := newGRPCHealthServer(logger)

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		shutdownOutboxWorker(outboxCancel, outboxDone, logger)
		disconnectKafka(kafkaProducer, logger)
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiLis.Close()
		shutdownOutboxWorker(outboxCancel, outboxDone, logger)
		disconnectKafka(kafkaProducer, logger)
		return fmt.Errorf("listen grpc: %w", err)
	}

	metricsLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = apiLis.Close()
		_ = grpcLis.Close()
		shutdownOutboxWorker(outboxCancel, outboxDone, logger)
		disconnectKafka(kafkaProducer, logger)
		return fmt.Errorf("listen metrics: %w", err)
	}

	metricsSrv := startMetricsServer(ctx, metricsLis, logger, healthHandler)
	go watchReadiness(ctx, healthHandler, healthServer, readinessProbeInterval, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("REST API слушает %s", apiLis.Addr())
		errCh <- apiApp.Listener(apiLis)
	}()
	go func() {
		logger.Infof("gRPC health слушает %s", grpcLis.Addr())
		errCh <- grpcServer.Serve(grpcLis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	healthServer.Shutdown()
	shutdownAPI(apiApp, logger)
	shutdownGRPC(grpcServer, logger)
	shutdownHTTP(metricsSrv, logger)
	shutdownOutboxWorker(outboxCancel, outboxDone, logger)
	disconnectKafka(kafkaProducer, logger)

	return runErr
}

func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, m *metrics.ServiceMetrics, logger *log.Entry) *outbox.Worker {
	opts := []outbox.Option{
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(m),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if topic := strings.TrimSpace(cfg.DLQTopic); topic != "" {
		opts = append(opts, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, topic)))
	}

	topic := strings.TrimSpace(cfg.OutboxTopic)
	if topic == "" {
		topic = defaultOutboxTopic
	}
	return outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, topic), opts...)
}

// startOutboxWorker запускает worker в отдельной горутине; done закрывается после выхода из Run.
func startOutboxWorker(ctx context.Context, worker *outbox.Worker) (context.CancelFunc, <-chan struct{}) {
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	return cancel, done
}

// shutdownOutboxWorker останавливает worker и ждёт его завершения не дольше shutdownTimeout.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker остановлен")
	case <-time.After(shutdownTimeout):
		logger.Warn("outbox worker не остановился за отведённое время")
	}
}

// newGRPCHealthServer собирает gRPC-сервер со стандартным health-сервисом и reflection.
func newGRPCHealthServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// watchReadiness переводит gRPC health в NOT_SERVING, пока readiness-проверки не проходят.
func watchReadiness(ctx context.Context, checks *healthcheck.Handler, server *health.Server, interval time.Duration, logger *log.Entry) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ready, component := checks.Ready()
			if ready == serving {
				continue
			}
			serving = ready
			if ready {
				server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
				logger.Info("сервис снова готов")
			} else {
				server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
				logger.WithField("component", component).Warn("сервис не готов")
			}
		}
	}
}

// newOpsMux собирает служебные маршруты: метрики Prometheus и health-пробы.
func newOpsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer обслуживает служебные маршруты на lis до отмены ctx.
func startMetricsServer(ctx context.Context, lis net.Listener, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Handler: newOpsMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики и health-пробы слушают %s", lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

func shutdownAPI(apiApp *fiber.App, logger *log.Entry) {
	if apiApp == nil {
		return
	}
	if err := apiApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.WithError(err).Warn("api shutdown with error")
	}
}

func shutdownGRPC(grpcServer *grpc.Server, logger *log.Entry) {
	if grpcServer == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		grpcServer.Stop()
	}
}
