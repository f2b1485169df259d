package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "github.com/vladislavdragonenkov/orderpay/internal/health"
)

// localConfig слушает на случайных портах, чтобы тесты не конфликтовали с запущенным сервисом.
func localConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory
	cfg.KafkaBrokers = ""
	cfg.JWTSecret = "test-secret"
	return cfg
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, localConfig()) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context deadline error, got %v", err)
		}
	case <-time.After(shutdownTimeout + 2*time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRun_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWTSecret = " " }, want: "jwt secret"},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "invalid-driver" }, want: "unsupported storage driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StorageDriver = StorageDriverPostgres }, want: "requires DSN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := localConfig()
			tc.mutate(&cfg)

			err := Run(context.Background(), cfg)
			if err == nil || !strings.Contains(err.Error(), "invalid config") || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected invalid config error with %q, got %v", tc.want, err)
			}
		})
	}
}

func TestInitRuntimeDependencies_Postgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("ORDERPAY_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("ORDERPAY_POSTGRES_TEST_DSN is not set")
	}

	cfg := localConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, quietEntry())
	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	t.Cleanup(func() { _ = deps.closeFn() })

	if deps.orders == nil || deps.payments == nil || deps.outboxRepo == nil || deps.timelineRepo == nil {
		t.Fatalf("all repositories must be wired: %+v", deps)
	}
	if check := deps.storageChecker.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage, got %+v", check)
	}
}

func TestShutdownOutboxWorker(t *testing.T) {
	var cancelled atomic.Bool
	done := make(chan struct{})
	close(done)

	shutdownOutboxWorker(func() { cancelled.Store(true) }, done, quietEntry())
	if !cancelled.Load() {
		t.Fatal("cancel func must be called")
	}

	// Без запущенного worker и без сетевых компонентов остановка ничего не делает.
	shutdownOutboxWorker(nil, nil, quietEntry())
	shutdownAPI(nil, quietEntry())
	shutdownGRPC(nil, quietEntry())
}

func TestWatchReadiness_TogglesGRPCHealth(t *testing.T) {
	var down atomic.Bool
	down.Store(true)

	checks := healthcheck.NewHandler("test")
	checks.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
		if down.Load() {
			return errors.New("storage down")
		}
		return nil
	}))

	server := health.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchReadiness(ctx, checks, server, 10*time.Millisecond, quietEntry())

	awaitServingStatus(t, server, healthpb.HealthCheckResponse_NOT_SERVING)
	down.Store(false)
	awaitServingStatus(t, server, healthpb.HealthCheckResponse_SERVING)
}

func awaitServingStatus(t *testing.T, server *health.Server, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := server.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err == nil && resp.GetStatus() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("grpc health did not reach %s", want)
}
