package gateway

import (
	"context"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

const (
	messageProcessed = "Payment processed"
	messageDeclined  = "Payment declined"
)

// Decider решает, будет ли симулированный платёж успешным.
type Decider func() bool

// CoinFlip даёт успех с вероятностью 50%. Используется по умолчанию.
func CoinFlip() bool {
	return rand.IntN(2) == 1
}

// Always возвращает Decider с фиксированным исходом.
func Always(success bool) Decider {
	return func() bool { return success }
}

// Credentials — ключи доступа к провайдеру. Симуляция их только хранит.
type Credentials struct {
	APIKey string
	Secret string
}

// Configured сообщает, заданы ли оба ключа.
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.Secret != ""
}

// Simulated имитирует внешний шлюз без сетевых вызовов.
type Simulated struct {
	name        string
	credentials Credentials
	decide      Decider
}

// NewSimulated создаёт симулированный шлюз. nil decider заменяется на CoinFlip.
func NewSimulated(name string, credentials Credentials, decide Decider) *Simulated {
	if decide == nil {
		decide = CoinFlip
	}
	return &Simulated{name: name, credentials: credentials, decide: decide}
}

// Name возвращает отображаемое имя провайдера.
func (s *Simulated) Name() string {
	return s.name
}

// Credentials возвращает ключи, с которыми шлюз был настроен.
func (s *Simulated) Credentials() Credentials {
	return s.credentials
}

// Submit возвращает успешный исход с transaction id вида "<Name>-<uuid>" либо отказ.
func (s *Simulated) Submit(ctx context.Context, _ decimal.Decimal) (domain.GatewayOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.GatewayOutcome{}, err
	}
	if !s.decide() {
		return domain.GatewayOutcome{Success: false, Message: messageDeclined}, nil
	}
	txID := s.name + "-" + uuid.NewString()
	return domain.GatewayOutcome{Success: true, TransactionID: &txID, Message: messageProcessed}, nil
}

// Settings задаёт конфигурацию всех симулированных шлюзов.
type Settings struct {
	Paypal  Credentials
	Stripe  Credentials
	PayMob  Credentials
	Decider Decider
}

// NewSimulatedRegistry регистрирует PayPal, Stripe и PayMob с общим Decider.
func NewSimulatedRegistry(settings Settings) *Registry {
	registry, err := NewRegistry(map[domain.PaymentGateway]Gateway{
		domain.GatewayPaypal: NewSimulated(domain.GatewayPaypal.Label(), settings.Paypal, settings.Decider),
		domain.GatewayStripe: NewSimulated(domain.GatewayStripe.Label(), settings.Stripe, settings.Decider),
		domain.GatewayPayMob: NewSimulated(domain.GatewayPayMob.Label(), settings.PayMob, settings.Decider),
	})
	if err != nil {
		// Набор ключей фиксирован и всегда валиден.
		panic(err)
	}
	return registry
}

var _ Gateway = (*Simulated)(nil)
