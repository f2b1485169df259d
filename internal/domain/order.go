package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
// Значения совпадают с кодами, которые хранятся в БД и отдаются в API.
type OrderStatus int

const (
	// OrderStatusPending: заказ создан и ещё не подтверждён.
	OrderStatusPending OrderStatus = 0
	// OrderStatusConfirmed: по заказу можно принимать оплату.
	OrderStatusConfirmed OrderStatus = 1
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = 2
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Label возвращает человекочитаемое название статуса.
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusConfirmed:
		return "Confirmed"
	case OrderStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// MaxProductNameLength ограничивает длину названия товара в позиции.
const MaxProductNameLength = 255

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductName string
	Quantity    int32
	// UnitPrice хранится с точностью до двух знаков после запятой.
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// Subtotal считает стоимость позиции: quantity * unit_price. В БД не хранится.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          string
	OwnerID     string
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Items       []OrderItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SumItems считает сумму позиций заказа в фиксированной точке.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(MoneyScale)
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.OwnerID == "" {
		errs = append(errs, ErrOwnerRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	for _, item := range o.Items {
		if item.ProductName == "" {
			errs = append(errs, ErrItemNameRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	// Сумма заказа обязана совпадать с суммой позиций.
	if !SumItems(o.Items).Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
