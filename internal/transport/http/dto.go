package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

type itemRequest struct {
	ProductName *string          `json:"product_name"`
	Quantity    *int             `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	Items []itemRequest `json:"items"`
}

type updateOrderRequest struct {
	Status *int           `json:"status"`
	Items  *[]itemRequest `json:"items"`
}

type processPaymentRequest struct {
	OrderID *string          `json:"order_id"`
	Amount  *decimal.Decimal `json:"amount"`
	Gateway *int             `json:"gateway"`
}

type itemResponse struct {
	ID          string    `json:"id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
	CreatedAt   time.Time `json:"created_at"`
}

type orderResponse struct {
	ID          string         `json:"id"`
	Status      int            `json:"status"`
	StatusLabel string         `json:"status_label"`
	TotalAmount string         `json:"total_amount"`
	Items       []itemResponse `json:"items,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type paymentResponse struct {
	ID              string                `json:"id"`
	OrderID         string                `json:"order_id"`
	Amount          string                `json:"amount"`
	Gateway         int                   `json:"gateway"`
	GatewayLabel    string                `json:"gateway_label"`
	Status          int                   `json:"status"`
	StatusLabel     string                `json:"status_label"`
	TransactionID   *string               `json:"transaction_id"`
	GatewayResponse domain.GatewayOutcome `json:"gateway_response"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type timelineResponse struct {
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

type pageResponse[T any] struct {
	Data []T      `json:"data"`
	Meta pageMeta `json:"meta"`
}

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		Status:      int(o.Status),
		StatusLabel: o.Status.Label(),
		TotalAmount: domain.FormatMoney(o.TotalAmount),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if len(o.Items) > 0 {
		resp.Items = make([]itemResponse, 0, len(o.Items))
		for _, item := range o.Items {
			resp.Items = append(resp.Items, itemResponse{
				ID:          item.ID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   domain.FormatMoney(item.UnitPrice),
				Subtotal:    domain.FormatMoney(item.Subtotal()),
				CreatedAt:   item.CreatedAt,
			})
		}
	}
	return resp
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		Amount:          domain.FormatMoney(p.Amount),
		Gateway:         int(p.Gateway),
		GatewayLabel:    p.Gateway.Label(),
		Status:          int(p.Status),
		StatusLabel:     p.Status.Label(),
		TransactionID:   p.TransactionID,
		GatewayResponse: p.GatewayResponse,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPageResponse[S, T any](page domain.Page[S], convert func(S) T) pageResponse[T] {
	data := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		data = append(data, convert(item))
	}
	return pageResponse[T]{
		Data: data,
		Meta: pageMeta{
			CurrentPage: page.Page,
			PerPage:     page.PerPage,
			Total:       page.Total,
			LastPage:    page.LastPage(),
		},
	}
}
