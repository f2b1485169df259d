// Package order реализует операции над заказами владельца: создание, чтение, изменение и удаление.
package order

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/metrics"
	"github.com/vladislavdragonenkov/orderpay/internal/service/events"
)

// Сообщения валидации, отдаваемые клиенту как есть.
const (
	msgItemsRequired       = "Order must have at least one item"
	msgItemsReplaceEmpty   = "At least one item is required"
	msgProductNameRequired = "Product name is required"
	msgProductNameTooLong  = "Product name may not be greater than 255 characters"
	msgQuantityMin         = "Quantity must be at least 1"
	msgQuantityMax         = "Quantity is too large"
	msgUnitPriceMin        = "Unit price must be 0 or greater"
	msgStatusInvalid       = "Invalid order status"
)

// ItemInput — позиция заказа в том виде, в котором её прислал клиент.
type ItemInput struct {
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// OrderPatch — частичное изменение заказа. nil-поля не трогаются.
type OrderPatch struct {
	Status *domain.OrderStatus
	Items  *[]ItemInput
}

// Manager управляет заказами. Все операции ограничены владельцем.
type Manager struct {
	orders   domain.OrderRepository
	recorder *events.Recorder
	metrics  *metrics.ServiceMetrics
	logger   *log.Entry
	now      func() time.Time
}

// Option настраивает Manager.
type Option func(*Manager)

// WithRecorder подключает запись timeline и outbox.
func WithRecorder(recorder *events.Recorder) Option {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(serviceMetrics *metrics.ServiceMetrics) Option {
	return func(m *Manager) {
		m.metrics = serviceMetrics
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager создаёт менеджер заказов.
func NewManager(orders domain.OrderRepository, logger *log.Entry, opts ...Option) *Manager {
	if logger == nil {
		logger = log.WithField("component", "order-manager")
	}
	m := &Manager{
		orders: orders,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create проверяет позиции, считает сумму и сохраняет заказ в статусе Pending.
func (m *Manager) Create(ctx context.Context, ownerID string, inputs []ItemInput) (domain.Order, error) {
	if ownerID == "" {
		return domain.Order{}, domain.ErrOwnerRequired
	}
	verr := domain.NewValidationError()
	validateItems(verr, inputs, msgItemsRequired)
	if err := verr.OrNil(); err != nil {
		return domain.Order{}, err
	}

	now := m.now()
	orderID := uuid.NewString()
	items := buildItems(orderID, inputs, now)
	order := domain.Order{
		ID:          orderID,
		OwnerID:     ownerID,
		Status:      domain.OrderStatusPending,
		TotalAmount: domain.SumItems(items),
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("build order: %w", errs[0])
	}

	if err := m.orders.Create(ctx, order); err != nil {
		m.logger.WithError(err).WithField("owner_id", ownerID).Error("failed to create order")
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	m.metrics.RecordOrderCreated()
	m.recorder.Timeline(ctx, order.ID, domain.TimelineOrderCreated, "", now)
	m.recorder.Publish(ctx, domain.AggregateOrder, order.ID, domain.EventOrderCreated, domain.NewOrderEvent(order, now))

	m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"owner_id": ownerID,
		"items":    len(items),
		"total":    domain.FormatMoney(order.TotalAmount),
	}).Info("order created")

	return order, nil
}

// List возвращает страницу заказов владельца (без позиций), новые первыми.
func (m *Manager) List(ctx context.Context, ownerID string, filter domain.OrderFilter) (domain.Page[domain.Order], error) {
	if filter.Status != nil && !filter.Status.Valid() {
		verr := domain.NewValidationError()
		verr.Add("status", msgStatusInvalid)
		return domain.Page[domain.Order]{}, verr
	}
	filter.PageRequest = filter.PageRequest.Normalize()

	page, err := m.orders.List(ctx, ownerID, filter)
	if err != nil {
		m.logger.WithError(err).WithField("owner_id", ownerID).Error("failed to list orders")
		return domain.Page[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

// Get возвращает заказ владельца с позициями.
func (m *Manager) Get(ctx context.Context, ownerID, orderID string) (domain.Order, error) {
	order, err := m.orders.Get(ctx, ownerID, orderID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, err
		}
		m.logger.WithError(err).WithField("order_id", orderID).Error("failed to load order")
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// Update перезаписывает статус и/или полностью заменяет позиции, затем перечитывает заказ.
// Статус меняется без проверки перехода: Cancelled -> Confirmed допустим.
func (m *Manager) Update(ctx context.Context, ownerID, orderID string, patch OrderPatch) (domain.Order, error) {
	// Чужой или отсутствующий заказ даёт not found раньше ошибок тела запроса.
	before, err := m.Get(ctx, ownerID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	verr := domain.NewValidationError()
	if patch.Status != nil && !patch.Status.Valid() {
		verr.Add("status", msgStatusInvalid)
	}
	if patch.Items != nil {
		validateItems(verr, *patch.Items, msgItemsReplaceEmpty)
	}
	if err := verr.OrNil(); err != nil {
		return domain.Order{}, err
	}

	now := m.now()
	upd := domain.OrderUpdate{Status: patch.Status, UpdatedAt: now}
	if patch.Items != nil {
		upd.ReplaceItems = true
		upd.Items = buildItems(orderID, *patch.Items, now)
		upd.TotalAmount = domain.SumItems(upd.Items)
	}

	if err := m.orders.Update(ctx, ownerID, orderID, upd); err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, err
		}
		m.logger.WithError(err).WithField("order_id", orderID).Error("failed to update order")
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	updated, err := m.Get(ctx, ownerID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	m.metrics.RecordOrderUpdated()
	if patch.Status != nil && *patch.Status != before.Status {
		reason := before.Status.Label() + " -> " + patch.Status.Label()
		m.recorder.Timeline(ctx, orderID, domain.TimelineOrderStatusChanged, reason, now)
	}
	if upd.ReplaceItems {
		reason := fmt.Sprintf("%d items, total %s", len(upd.Items), domain.FormatMoney(upd.TotalAmount))
		m.recorder.Timeline(ctx, orderID, domain.TimelineOrderItemsReplaced, reason, now)
	}
	m.recorder.Publish(ctx, domain.AggregateOrder, orderID, domain.EventOrderUpdated, domain.NewOrderEvent(updated, now))

	m.logger.WithFields(log.Fields{
		"order_id":      orderID,
		"status":        updated.Status.Label(),
		"items_changed": upd.ReplaceItems,
	}).Info("order updated")

	return updated, nil
}

// Delete удаляет заказ, если по нему нет ни одного платежа.
// Возвращает false без ошибки, когда удаление запрещено.
func (m *Manager) Delete(ctx context.Context, ownerID, orderID string) (bool, error) {
	deleted, err := m.orders.DeleteIfNoPayments(ctx, ownerID, orderID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, err
		}
		m.logger.WithError(err).WithField("order_id", orderID).Error("failed to delete order")
		return false, fmt.Errorf("delete order: %w", err)
	}

	m.metrics.RecordOrderDeleted(deleted)
	if !deleted {
		m.logger.WithField("order_id", orderID).Info("order delete refused: payments exist")
		return false, nil
	}

	now := m.now()
	m.recorder.Publish(ctx, domain.AggregateOrder, orderID, domain.EventOrderDeleted, domain.OrderEvent{
		OrderID:    orderID,
		OwnerID:    ownerID,
		OccurredAt: now,
	})
	m.logger.WithField("order_id", orderID).Info("order deleted")
	return true, nil
}

// Timeline возвращает историю заказа владельца в хронологическом порядке.
func (m *Manager) Timeline(ctx context.Context, ownerID, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := m.Get(ctx, ownerID, orderID); err != nil {
		return nil, err
	}
	history, err := m.recorder.History(ctx, orderID)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Error("failed to load timeline")
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	return history, nil
}

func validateItems(verr *domain.ValidationError, inputs []ItemInput, emptyMessage string) {
	if len(inputs) == 0 {
		verr.Add("items", emptyMessage)
		return
	}

	for i, in := range inputs {
		prefix := fmt.Sprintf("items.%d.", i)
		name := strings.TrimSpace(in.ProductName)
		switch {
		case name == "":
			verr.Add(prefix+"product_name", msgProductNameRequired)
		case utf8.RuneCountInString(in.ProductName) > domain.MaxProductNameLength:
			verr.Add(prefix+"product_name", msgProductNameTooLong)
		}
		switch {
		case in.Quantity < 1:
			verr.Add(prefix+"quantity", msgQuantityMin)
		case in.Quantity > math.MaxInt32:
			verr.Add(prefix+"quantity", msgQuantityMax)
		}
		if in.UnitPrice.IsNegative() {
			verr.Add(prefix+"unit_price", msgUnitPriceMin)
		}
	}
}

func buildItems(orderID string, inputs []ItemInput, now time.Time) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, domain.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ProductName: in.ProductName,
			Quantity:    int32(in.Quantity),
			UnitPrice:   domain.RoundMoney(in.UnitPrice),
			CreatedAt:   now,
		})
	}
	return items
}
