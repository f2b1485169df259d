package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

func noEnv(string) (string, bool) { return "", false }

func TestParseMode(t *testing.T) {
	for input, want := range map[string]loadMode{
		"create":           modeCreate,
		" create-confirm ": modeCreateConfirm,
		"create-pay":       modeCreatePay,
	} {
		got, err := parseMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := parseMode("refund")
	assert.ErrorContains(t, err, "unsupported mode")
}

func TestLoadMode_Steps(t *testing.T) {
	assert.Equal(t, 1, modeCreate.steps())
	assert.Equal(t, 2, modeCreateConfirm.steps())
	assert.Equal(t, 3, modeCreatePay.steps())
}

func TestParseConfig_CountMode(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-addr=http://127.0.0.1:9000/",
		"-jwt-secret=s3cret",
		"-total=12",
		"-concurrency=3",
		"-timeout=2s",
		"-mode=create-pay",
		"-gateway=2",
		"-unit-price=19.99",
		"-output=report.json",
	}, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000", cfg.baseURL)
	assert.Equal(t, 12, cfg.total)
	assert.True(t, cfg.totalSet)
	assert.Zero(t, cfg.duration)
	assert.Equal(t, 3, cfg.concurrency)
	assert.Equal(t, 2*time.Second, cfg.timeout)
	assert.Equal(t, modeCreatePay, cfg.mode)
	assert.Equal(t, domain.GatewayPayMob, cfg.gateway)
	assert.True(t, cfg.unitPrice.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, "report.json", cfg.outputPath)
}

func TestParseConfig_SecretFromEnv(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == envJWTSecret {
			return " env-secret ", true
		}
		return "", false
	}

	cfg, err := parseConfig([]string{"-duration=3s"}, lookup)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.jwtSecret)
	assert.Equal(t, 3*time.Second, cfg.duration)
	assert.False(t, cfg.totalSet)
	assert.Equal(t, domain.GatewayStripe, cfg.gateway)
	assert.Equal(t, modeCreate, cfg.mode)

	flagWins, err := parseConfig([]string{"-jwt-secret=flag"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "flag", flagWins.jwtSecret)
}

func TestParseConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing secret", args: nil, want: "jwt-secret"},
		{name: "empty addr", args: []string{"-jwt-secret=x", "-addr= "}, want: "addr is required"},
		{name: "bad timeout", args: []string{"-jwt-secret=x", "-timeout=soon"}, want: "parse timeout"},
		{name: "bad duration", args: []string{"-jwt-secret=x", "-duration=later"}, want: "parse duration"},
		{name: "bad price", args: []string{"-jwt-secret=x", "-unit-price=cheap"}, want: "parse unit-price"},
		{name: "zero price", args: []string{"-jwt-secret=x", "-unit-price=0"}, want: "unit-price must be > 0"},
		{name: "bad gateway", args: []string{"-jwt-secret=x", "-gateway=9"}, want: "unsupported gateway"},
		{name: "bad mode", args: []string{"-jwt-secret=x", "-mode=refund"}, want: "unsupported mode"},
		{name: "zero total", args: []string{"-jwt-secret=x", "-total=0"}, want: "total must be > 0"},
		{name: "zero total with duration", args: []string{"-jwt-secret=x", "-duration=1s", "-total=0"}, want: "when set explicitly"},
		{name: "zero concurrency", args: []string{"-jwt-secret=x", "-concurrency=0"}, want: "concurrency must be > 0"},
		{name: "zero timeout", args: []string{"-jwt-secret=x", "-timeout=0s"}, want: "timeout must be > 0"},
		{name: "negative duration", args: []string{"-jwt-secret=x", "-duration=-1s"}, want: "duration must be >= 0"},
		{name: "blank product", args: []string{"-jwt-secret=x", "-product= "}, want: "product is required"},
		{name: "blank owner tag", args: []string{"-jwt-secret=x", "-owner-tag= "}, want: "owner-tag is required"},
		{name: "unknown flag", args: []string{"-bogus"}, want: "bogus"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConfig(tc.args, noEnv)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestConfig_Target(t *testing.T) {
	assert.Equal(t, "count:50", config{total: 50}.target())
	assert.Equal(t, "duration:2s", config{duration: 2 * time.Second}.target())
	assert.Equal(t, "duration:2s,max-total:10", config{duration: 2 * time.Second, total: 10, totalSet: true}.target())
}
