package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Ошибка отсутствующего владельца заказа.
	ErrOwnerRequired = errors.New("owner_id is required")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("invalid order status")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount must be non-negative")
	// Ошибка пустого названия товара.
	ErrItemNameRequired = errors.New("item product_name is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item unit_price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// ErrGatewayUnsupported возвращает реестр для незарегистрированного шлюза.
	ErrGatewayUnsupported = errors.New("payment gateway is not supported")
	// ErrOrderNotFound возвращается, если заказ не найден или принадлежит другому владельцу.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderHasPayments: по заказу есть платежи, удалять нельзя.
	ErrOrderHasPayments = errors.New("cannot delete order with associated payments")
	// ErrValidation — общий маркер ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")
	// Ошибка публикации или отметки сообщения outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError содержит замечания по полям запроса.
// Ключ — путь к полю ("items.0.quantity"), значение — список сообщений.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError создаёт пустую ошибку валидации.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add добавляет сообщение к полю.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Addf добавляет форматированное сообщение к полю.
func (e *ValidationError) Addf(field, format string, args ...any) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// Empty сообщает, что замечаний нет.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil возвращает nil, если замечаний нет. Удобно для `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// First возвращает первое сообщение по алфавиту полей.
func (e *ValidationError) First() string {
	if e.Empty() {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return e.Fields[keys[0]][0]
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidation проверяет, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// AsValidation извлекает ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsNotFound проверяет, что заказ не найден (или скрыт областью владельца).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}
