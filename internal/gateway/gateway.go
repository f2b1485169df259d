// Package gateway содержит платёжные шлюзы и статический реестр для их выбора.
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

// Gateway списывает сумму через внешнего платёжного провайдера.
// Submit вызывается ровно один раз на платёж; ошибка трактуется вызывающей стороной как отказ.
type Gateway interface {
	Name() string
	Submit(ctx context.Context, amount decimal.Decimal) (domain.GatewayOutcome, error)
}

// Registry сопоставляет enum-значение шлюза с реализацией. После создания не меняется.
type Registry struct {
	gateways map[domain.PaymentGateway]Gateway
}

// NewRegistry собирает реестр один раз при старте. Неизвестные ключи и nil-реализации отклоняются.
func NewRegistry(gateways map[domain.PaymentGateway]Gateway) (*Registry, error) {
	copied := make(map[domain.PaymentGateway]Gateway, len(gateways))
	for kind, gw := range gateways {
		if !kind.Valid() {
			return nil, fmt.Errorf("register gateway %d: %w", int(kind), domain.ErrGatewayUnsupported)
		}
		if gw == nil {
			return nil, fmt.Errorf("register gateway %s: implementation is nil", kind.Label())
		}
		copied[kind] = gw
	}
	return &Registry{gateways: copied}, nil
}

// Resolve возвращает реализацию шлюза или ErrGatewayUnsupported.
func (r *Registry) Resolve(kind domain.PaymentGateway) (Gateway, error) {
	if r == nil {
		return nil, domain.ErrGatewayUnsupported
	}
	gw, ok := r.gateways[kind]
	if !ok {
		return nil, domain.ErrGatewayUnsupported
	}
	return gw, nil
}

// Supported возвращает зарегистрированные шлюзы в порядке enum-значений.
func (r *Registry) Supported() []domain.PaymentGateway {
	result := make([]domain.PaymentGateway, 0, len(r.gateways))
	for _, kind := range domain.Gateways() {
		if _, ok := r.gateways[kind]; ok {
			result = append(result, kind)
		}
	}
	return result
}
