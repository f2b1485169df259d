package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние платежа в системе.
type PaymentStatus int

const (
	// PaymentStatusPending означает, что исход ещё не известен.
	PaymentStatusPending PaymentStatus = 0
	// PaymentStatusSuccessful: шлюз подтвердил списание.
	PaymentStatusSuccessful PaymentStatus = 1
	// PaymentStatusFailed ставится и при отказе шлюза, и при его сбое.
	PaymentStatusFailed PaymentStatus = 2
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSuccessful, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// Label возвращает человекочитаемое название статуса.
func (s PaymentStatus) Label() string {
	switch s {
	case PaymentStatusPending:
		return "Pending"
	case PaymentStatusSuccessful:
		return "Successful"
	case PaymentStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PaymentGateway идентифицирует платёжный шлюз.
type PaymentGateway int

const (
	GatewayPaypal PaymentGateway = 0
	GatewayStripe PaymentGateway = 1
	GatewayPayMob PaymentGateway = 2
)

// Gateways перечисляет все поддерживаемые шлюзы.
func Gateways() []PaymentGateway {
	return []PaymentGateway{GatewayPaypal, GatewayStripe, GatewayPayMob}
}

// Valid проверяет, что шлюз известен системе.
func (g PaymentGateway) Valid() bool {
	switch g {
	case GatewayPaypal, GatewayStripe, GatewayPayMob:
		return true
	default:
		return false
	}
}

// Label возвращает отображаемое имя шлюза.
func (g PaymentGateway) Label() string {
	switch g {
	case GatewayPaypal:
		return "PayPal"
	case GatewayStripe:
		return "Stripe"
	case GatewayPayMob:
		return "PayMob"
	default:
		return "Unknown"
	}
}

// GatewayOutcome — исход обращения к шлюзу. Сохраняется в платеже как gateway_response.
type GatewayOutcome struct {
	Success       bool    `json:"success"`
	TransactionID *string `json:"transaction_id"`
	Message       string  `json:"message"`
}

// FaultOutcome превращает ошибку шлюза в неуспешный исход.
func FaultOutcome(err error) GatewayOutcome {
	return GatewayOutcome{Success: false, TransactionID: nil, Message: err.Error()}
}

// Payment — неизменяемая запись об одной попытке оплаты заказа.
type Payment struct {
	ID              string
	OrderID         string
	Amount          decimal.Decimal
	Gateway         PaymentGateway
	Status          PaymentStatus
	TransactionID   *string // Заполняется только при успешной оплате.
	GatewayResponse GatewayOutcome
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPaymentFromOutcome собирает запись платежа по исходу шлюза.
func NewPaymentFromOutcome(id, orderID string, amount decimal.Decimal, gateway PaymentGateway, outcome GatewayOutcome, now time.Time) Payment {
	status := PaymentStatusFailed
	if outcome.Success {
		status = PaymentStatusSuccessful
	}
	return Payment{
		ID:              id,
		OrderID:         orderID,
		Amount:          amount,
		Gateway:         gateway,
		Status:          status,
		TransactionID:   outcome.TransactionID,
		GatewayResponse: outcome,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
