package domain

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultPerPage — размер страницы по умолчанию.
	DefaultPerPage = 15
	// MaxPerPage ограничивает размер страницы сверху.
	MaxPerPage = 100
)

// PageRequest описывает постраничную выборку (страницы нумеруются с 1).
type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize подставляет значения по умолчанию и обрезает слишком большие страницы и номера страниц.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	// Offset и конец страницы должны помещаться в int.
	if maxPage := math.MaxInt/p.PerPage - 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// Offset возвращает смещение для SQL OFFSET.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Page — страница результатов с метаданными.
type Page[T any] struct {
	Items   []T
	Total   int
	Page    int
	PerPage int
}

// LastPage возвращает номер последней страницы (минимум 1).
func (p Page[T]) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// OrderFilter задаёт фильтр списка заказов.
type OrderFilter struct {
	Status *OrderStatus
	PageRequest
}

// PaymentFilter задаёт фильтр списка платежей.
type PaymentFilter struct {
	OrderID string
	PageRequest
}

// OrderUpdate — набор изменений, применяемых к заказу одной транзакцией.
type OrderUpdate struct {
	// Status перезаписывается без проверки допустимости перехода.
	Status *OrderStatus
	// ReplaceItems означает полную замену позиций и пересчёт суммы.
	ReplaceItems bool
	Items        []OrderItem
	TotalAmount  decimal.Decimal
	UpdatedAt    time.Time
}

// OrderRepository описывает требования к хранилищу заказов.
// Все методы ограничены владельцем: чужой заказ неотличим от отсутствующего.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями одной транзакцией.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, ownerID, id string) (Order, error)
	// List возвращает страницу заказов владельца (без позиций), новые первыми.
	List(ctx context.Context, ownerID string, filter OrderFilter) (Page[Order], error)
	// Update атомарно применяет изменения статуса и/или замену позиций.
	Update(ctx context.Context, ownerID, id string, upd OrderUpdate) error
	// DeleteIfNoPayments удаляет заказ, если на него не ссылается ни один платёж.
	// Возвращает false без ошибки, если платежи есть.
	DeleteIfNoPayments(ctx context.Context, ownerID, id string) (bool, error)
}

// PaymentRepository хранит неизменяемые записи платежей.
type PaymentRepository interface {
	// Create сохраняет платёж; заказ должен существовать и принадлежать владельцу.
	Create(ctx context.Context, ownerID string, payment Payment) error
	// List возвращает страницу платежей по заказам владельца, новые первыми.
	List(ctx context.Context, ownerID string, filter PaymentFilter) (Page[Payment], error)
}
