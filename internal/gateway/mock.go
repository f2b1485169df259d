package gateway

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

// MockGateway — детерминированный шлюз для тестов.
// Outcomes отдаются по очереди (последний повторяется); Err и PanicValue имитируют сбои.
type MockGateway struct {
	mu sync.Mutex

	GatewayName string
	Outcomes    []domain.GatewayOutcome
	Err         error
	PanicValue  any

	Calls   int
	Amounts []decimal.Decimal
}

// NewMockGateway возвращает mock с одним фиксированным исходом.
func NewMockGateway(name string, outcome domain.GatewayOutcome) *MockGateway {
	return &MockGateway{GatewayName: name, Outcomes: []domain.GatewayOutcome{outcome}}
}

// Name возвращает имя mock-шлюза.
func (m *MockGateway) Name() string {
	return m.GatewayName
}

// Submit возвращает настроенный исход и считает вызовы.
func (m *MockGateway) Submit(_ context.Context, amount decimal.Decimal) (domain.GatewayOutcome, error) {
	m.mu.Lock()
	m.Calls++
	m.Amounts = append(m.Amounts, amount)
	call := m.Calls
	m.mu.Unlock()

	if m.PanicValue != nil {
		panic(m.PanicValue)
	}
	if m.Err != nil {
		return domain.GatewayOutcome{}, m.Err
	}
	if len(m.Outcomes) == 0 {
		return domain.GatewayOutcome{Success: false, Message: messageDeclined}, nil
	}
	idx := call - 1
	if idx >= len(m.Outcomes) {
		idx = len(m.Outcomes) - 1
	}
	return m.Outcomes[idx], nil
}

// CallCount возвращает число вызовов Submit.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

var _ Gateway = (*MockGateway)(nil)
