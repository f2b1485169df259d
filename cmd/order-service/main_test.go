package main

import (
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderpay/internal/app"
)

func mapLookup(values map[string]string) envLookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestReadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		want         func(*app.Config)
		wantWarnings []string
	}{
		{
			name: "empty environment",
			want: func(*app.Config) {},
		},
		{
			name: "blank values are ignored",
			env:  map[string]string{envHTTPAddr: "  ", envOutboxBatchSize: ""},
			want: func(*app.Config) {},
		},
		{
			name: "all overrides",
			env: map[string]string{
				envHTTPAddr:            "localhost:8080",
				envGRPCAddr:            "localhost:50051",
				envMetricsAddr:         "localhost:9090",
				envStorageDriver:       " PoStGrEs ",
				envPostgresDSN:         " postgres://orderpay@localhost/orderpay ",
				envPostgresAutoMigrate: "off",
				envPostgresMaxConns:    "8",
				envJWTSecret:           "secret",
				envRequestTimeout:      "3s",
				envKafkaBrokers:        "localhost:9092",
				envOutboxTopic:         "custom.events",
				envOutboxPollInterval:  "2s",
				envOutboxBatchSize:     "42",
				envOutboxMaxAttempts:   "7",
				envOutboxRetryDelay:    "0s",
				envOutboxMaxPending:    "0",
				envStripeAPIKey:        "sk_test",
				envPayMobSecret:        "paymob-secret",
			},
			want: func(c *app.Config) {
				c.HTTPAddr = "localhost:8080"
				c.GRPCAddr = "localhost:50051"
				c.MetricsAddr = "localhost:9090"
				c.StorageDriver = app.StorageDriverPostgres
				c.PostgresDSN = "postgres://orderpay@localhost/orderpay"
				c.PostgresAutoMigrate = false
				c.PostgresMaxConns = 8
				c.JWTSecret = "secret"
				c.RequestTimeout = 3 * time.Second
				c.KafkaBrokers = "localhost:9092"
				c.OutboxTopic = "custom.events"
				c.OutboxPollInterval = 2 * time.Second
				c.OutboxBatchSize = 42
				c.OutboxMaxAttempts = 7
				c.OutboxRetryDelay = 0
				c.OutboxMaxPending = 0
				c.Gateways.StripeAPIKey = "sk_test"
				c.Gateways.PayMobSecret = "paymob-secret"
			},
		},
		{
			name: "invalid values keep defaults",
			env: map[string]string{
				envPostgresAutoMigrate: "not-bool",
				envPostgresMaxConns:    "0",
				envRequestTimeout:      "-5s",
				envOutboxPollInterval:  "-1s",
				envOutboxBatchSize:     "0",
				envOutboxMaxAttempts:   "bad",
				envOutboxRetryDelay:    "invalid",
				envOutboxMaxPending:    "-2",
			},
			want: func(*app.Config) {},
			wantWarnings: []string{
				envPostgresAutoMigrate,
				envPostgresMaxConns,
				envRequestTimeout,
				envOutboxPollInterval,
				envOutboxBatchSize,
				envOutboxMaxAttempts,
				envOutboxRetryDelay,
				envOutboxMaxPending,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := app.DefaultConfig()
			tt.want(&want)

			cfg, warnings := readConfigFromEnv(mapLookup(tt.env))
			if cfg != want {
				t.Errorf("config mismatch:\n got  %#v\n want %#v", cfg, want)
			}
			if len(warnings) != len(tt.wantWarnings) {
				t.Fatalf("expected %d warnings, got %v", len(tt.wantWarnings), warnings)
			}
			for _, key := range tt.wantWarnings {
				if !containsPrefix(warnings, key+":") {
					t.Errorf("missing warning for %s in %v", key, warnings)
				}
			}
		})
	}
}

func containsPrefix(values []string, prefix string) bool {
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}

func TestParseBool(t *testing.T) {
	for raw, want := range map[string]bool{" YES ": true, "1": true, "on": true, "off": false, "N": false, "false": false} {
		got, err := parseBool(raw)
		if err != nil || got != want {
			t.Errorf("parseBool(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := parseBool("sometimes"); err == nil {
		t.Error("expected error for invalid bool value")
	}
}

func TestParseNumbers(t *testing.T) {
	positive := func(v int) bool { return v > 0 }
	if v, err := parseInt(" 12 ", positive, "must be > 0"); err != nil || v != 12 {
		t.Errorf("parseInt: got %d, %v", v, err)
	}
	if _, err := parseInt("0", positive, "must be > 0"); err == nil || !strings.Contains(err.Error(), "must be > 0") {
		t.Errorf("expected rule violation, got %v", err)
	}
	if _, err := parseInt("1.5", nil, ""); err == nil {
		t.Error("expected error for non-integer")
	}

	nonNegative := func(v time.Duration) bool { return v >= 0 }
	if v, err := parseDuration(" 250ms ", nonNegative, "must be >= 0"); err != nil || v != 250*time.Millisecond {
		t.Errorf("parseDuration: got %s, %v", v, err)
	}
	if _, err := parseDuration("-1ms", nonNegative, "must be >= 0"); err == nil {
		t.Error("expected rule violation")
	}
	if _, err := parseDuration("soon", nil, ""); err == nil {
		t.Error("expected error for malformed duration")
	}
}
