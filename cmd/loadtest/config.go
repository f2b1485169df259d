package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

const envJWTSecret = "ORDERPAY_JWT_SECRET"

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateConfirm loadMode = "create-confirm"
	modeCreatePay     loadMode = "create-pay"
)

// steps возвращает число HTTP-вызовов в одном сценарии режима.
func (m loadMode) steps() int {
	switch m {
	case modeCreateConfirm:
		return 2
	case modeCreatePay:
		return 3
	default:
		return 1
	}
}

type config struct {
	baseURL     string
	jwtSecret   string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	gateway     domain.PaymentGateway
	product     string
	unitPrice   decimal.Decimal
	ownerTag    string
	outputPath  string
}

// rawFlags хранит строковые значения флагов до разбора.
type rawFlags struct {
	mode     string
	timeout  string
	duration string
	price    string
	gateway  int
}

func parseConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		cfg config
		raw rawFlags
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "HTTP API base URL")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HS256 secret for bearer tokens, falls back to "+envJWTSecret)
	fs.IntVar(&cfg.total, "total", 400, "scenario count; caps the run in duration mode when set explicitly")
	fs.StringVar(&raw.duration, "duration", "0s", "run for a fixed time instead of a fixed count")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "parallel workers")
	fs.StringVar(&raw.timeout, "timeout", "5s", "per-request timeout")
	fs.StringVar(&raw.mode, "mode", string(modeCreate), "create | create-confirm | create-pay")
	fs.IntVar(&raw.gateway, "gateway", int(domain.GatewayStripe), "gateway code: 0=PayPal 1=Stripe 2=PayMob")
	fs.StringVar(&cfg.product, "product", "Load Widget", "product name of the single order item")
	fs.StringVar(&raw.price, "unit-price", "10.00", "unit price of the order item")
	fs.StringVar(&cfg.ownerTag, "owner-tag", "load", "owner id prefix, one owner per worker")
	fs.StringVar(&cfg.outputPath, "output", "", "write the JSON report to this file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		cfg.totalSet = cfg.totalSet || f.Name == "total"
	})

	if err := cfg.apply(raw); err != nil {
		return cfg, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	cfg.jwtSecret = strings.TrimSpace(cfg.jwtSecret)
	if cfg.jwtSecret == "" {
		if v, ok := lookup(envJWTSecret); ok {
			cfg.jwtSecret = strings.TrimSpace(v)
		}
	}
	return cfg, cfg.validate()
}

func (c *config) apply(raw rawFlags) error {
	var err error
	if c.timeout, err = time.ParseDuration(strings.TrimSpace(raw.timeout)); err != nil {
		return fmt.Errorf("parse timeout: %w", err)
	}
	if c.duration, err = time.ParseDuration(strings.TrimSpace(raw.duration)); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	if c.unitPrice, err = decimal.NewFromString(strings.TrimSpace(raw.price)); err != nil {
		return fmt.Errorf("parse unit-price: %w", err)
	}
	if c.mode, err = parseMode(raw.mode); err != nil {
		return err
	}
	c.gateway = domain.PaymentGateway(raw.gateway)
	if !c.gateway.Valid() {
		return fmt.Errorf("unsupported gateway: %d", raw.gateway)
	}
	return nil
}

func (c config) validate() error {
	switch {
	case c.baseURL == "":
		return errors.New("addr is required")
	case c.jwtSecret == "":
		return errors.New("jwt-secret (or " + envJWTSecret + ") is required")
	case c.duration < 0:
		return errors.New("duration must be >= 0")
	case c.duration == 0 && c.total <= 0:
		return errors.New("total must be > 0 without duration")
	case c.totalSet && c.total <= 0:
		return errors.New("total must be > 0 when set explicitly")
	case c.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case c.timeout <= 0:
		return errors.New("timeout must be > 0")
	case !c.unitPrice.IsPositive():
		return errors.New("unit-price must be > 0")
	case strings.TrimSpace(c.product) == "":
		return errors.New("product is required")
	case strings.TrimSpace(c.ownerTag) == "":
		return errors.New("owner-tag is required")
	}
	return nil
}

// target описывает границу прогона для отчёта.
func (c config) target() string {
	switch {
	case c.duration <= 0:
		return fmt.Sprintf("count:%d", c.total)
	case c.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", c.duration, c.total)
	default:
		return fmt.Sprintf("duration:%s", c.duration)
	}
}

func parseMode(value string) (loadMode, error) {
	mode := loadMode(strings.TrimSpace(value))
	switch mode {
	case modeCreate, modeCreateConfirm, modeCreatePay:
		return mode, nil
	}
	return "", fmt.Errorf("unsupported mode: %s", value)
}
