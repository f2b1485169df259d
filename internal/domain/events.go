package domain

import "time"

// Типы агрегатов и событий, публикуемых через outbox.
const (
	AggregateOrder   = "order"
	AggregatePayment = "payment"

	EventOrderCreated     = "order.created"
	EventOrderUpdated     = "order.updated"
	EventOrderDeleted     = "order.deleted"
	EventPaymentProcessed = "payment.processed"
)

// OrderEvent — полезная нагрузка событий заказа.
type OrderEvent struct {
	OrderID     string    `json:"order_id"`
	OwnerID     string    `json:"owner_id"`
	Status      int       `json:"status"`
	StatusLabel string    `json:"status_label"`
	TotalAmount string    `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewOrderEvent собирает событие по текущему состоянию заказа.
func NewOrderEvent(order Order, occurred time.Time) OrderEvent {
	return OrderEvent{
		OrderID:     order.ID,
		OwnerID:     order.OwnerID,
		Status:      int(order.Status),
		StatusLabel: order.Status.Label(),
		TotalAmount: FormatMoney(order.TotalAmount),
		ItemCount:   len(order.Items),
		OccurredAt:  occurred,
	}
}

// PaymentEvent — полезная нагрузка события о сохранённом платеже.
type PaymentEvent struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	OwnerID       string    `json:"owner_id"`
	Amount        string    `json:"amount"`
	Gateway       int       `json:"gateway"`
	GatewayLabel  string    `json:"gateway_label"`
	Status        int       `json:"status"`
	StatusLabel   string    `json:"status_label"`
	TransactionID *string   `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewPaymentEvent собирает событие по записи платежа.
func NewPaymentEvent(ownerID string, p Payment) PaymentEvent {
	return PaymentEvent{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		OwnerID:       ownerID,
		Amount:        FormatMoney(p.Amount),
		Gateway:       int(p.Gateway),
		GatewayLabel:  p.Gateway.Label(),
		Status:        int(p.Status),
		StatusLabel:   p.Status.Label(),
		TransactionID: p.TransactionID,
		OccurredAt:    p.CreatedAt,
	}
}

// DefaultOutboxPullLimit используется PullPending, если limit не задан.
const DefaultOutboxPullLimit = 100

// OutboxMessage описывает событие в очереди публикации. Payload содержит JSON.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OldestAge возвращает возраст самого старого неотправленного сообщения на момент now.
func (s OutboxStats) OldestAge(now time.Time) time.Duration {
	if s.PendingCount == 0 || s.OldestPendingAt.IsZero() {
		return 0
	}
	return now.Sub(s.OldestPendingAt)
}
