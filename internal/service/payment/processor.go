// Package payment проводит оплату подтверждённых заказов через платёжные шлюзы.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/gateway"
	"github.com/vladislavdragonenkov/orderpay/internal/metrics"
	"github.com/vladislavdragonenkov/orderpay/internal/service/events"
)

const (
	msgOrderIDRequired   = "Order ID is required"
	msgAmountTooSmall    = "Amount must be greater than 0"
	msgGatewayInvalid    = "The selected gateway is invalid"
	msgOrderNotConfirmed = "Payments can only be processed for confirmed orders"
	msgAmountMismatch    = "Amount must match the order total of %s"

	persistTimeout = 5 * time.Second
)

// ProcessRequest описывает запрос на оплату заказа.
type ProcessRequest struct {
	OrderID string
	Amount  decimal.Decimal
	Gateway domain.PaymentGateway
}

// Processor проверяет предусловия, вызывает шлюз ровно один раз и сохраняет платёж.
type Processor struct {
	orders   domain.OrderRepository
	payments domain.PaymentRepository
	gateways *gateway.Registry
	recorder *events.Recorder
	metrics  *metrics.ServiceMetrics
	logger   *log.Entry
	now      func() time.Time
}

// Option настраивает Processor.
type Option func(*Processor)

// WithRecorder подключает запись timeline и outbox.
func WithRecorder(recorder *events.Recorder) Option {
	return func(p *Processor) {
		p.recorder = recorder
	}
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(serviceMetrics *metrics.ServiceMetrics) Option {
	return func(p *Processor) {
		p.metrics = serviceMetrics
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor создаёт процессор платежей.
func NewProcessor(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	logger *log.Entry,
	opts ...Option,
) *Processor {
	if logger == nil {
		logger = log.WithField("component", "payment-processor")
	}
	p := &Processor{
		orders:   orders,
		payments: payments,
		gateways: gateways,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// List возвращает страницу платежей по заказам владельца, новые первыми.
func (p *Processor) List(ctx context.Context, ownerID string, filter domain.PaymentFilter) (domain.Page[domain.Payment], error) {
	filter.PageRequest = filter.PageRequest.Normalize()
	page, err := p.payments.List(ctx, ownerID, filter)
	if err != nil {
		p.logger.WithError(err).WithField("owner_id", ownerID).Error("failed to list payments")
		return domain.Page[domain.Payment]{}, fmt.Errorf("list payments: %w", err)
	}
	return page, nil
}

// Process проводит платёж. Отказ или сбой шлюза не является ошибкой:
// платёж сохраняется со статусом Failed.
func (p *Processor) Process(ctx context.Context, ownerID string, req ProcessRequest) (domain.Payment, error) {
	verr := domain.NewValidationError()
	if req.OrderID == "" {
		verr.Add("order_id", msgOrderIDRequired)
	}
	if req.Amount.LessThan(domain.MinPaymentAmount) {
		verr.Add("amount", msgAmountTooSmall)
	}
	if !req.Gateway.Valid() {
		verr.Add("gateway", msgGatewayInvalid)
	}
	if err := verr.OrNil(); err != nil {
		p.metrics.RecordPaymentRejected("invalid_input")
		return domain.Payment{}, err
	}

	order, err := p.orders.Get(ctx, ownerID, req.OrderID)
	if err != nil {
		if domain.IsNotFound(err) {
			p.metrics.RecordPaymentRejected("order_not_found")
			return domain.Payment{}, err
		}
		p.logger.WithError(err).WithField("order_id", req.OrderID).Error("failed to load order for payment")
		return domain.Payment{}, fmt.Errorf("load order: %w", err)
	}

	if order.Status != domain.OrderStatusConfirmed {
		verr.Add("order_id", msgOrderNotConfirmed)
	}
	// Сумма сравнивается точно, без округления.
	if !req.Amount.Equal(order.TotalAmount) {
		verr.Addf("amount", msgAmountMismatch, domain.FormatMoney(order.TotalAmount))
	}
	if err := verr.OrNil(); err != nil {
		p.metrics.RecordPaymentRejected("precondition")
		return domain.Payment{}, err
	}

	gw, err := p.gateways.Resolve(req.Gateway)
	if err != nil {
		p.metrics.RecordPaymentRejected("gateway_unsupported")
		verr.Add("gateway", msgGatewayInvalid)
		return domain.Payment{}, verr
	}

	outcome := p.submit(ctx, gw, req)

	// После вызова шлюза платёж пишется всегда, даже если запрос уже истёк.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	payment := domain.NewPaymentFromOutcome(uuid.NewString(), order.ID, req.Amount, req.Gateway, outcome, p.now())
	if err := p.payments.Create(persistCtx, ownerID, payment); err != nil {
		// Заказ мог быть удалён между вызовом шлюза и сохранением.
		p.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"gateway":  req.Gateway.Label(),
			"success":  outcome.Success,
		}).Error("failed to persist payment after gateway call")
		if domain.IsNotFound(err) {
			return domain.Payment{}, err
		}
		return domain.Payment{}, fmt.Errorf("persist payment: %w", err)
	}

	p.metrics.RecordPayment(req.Gateway.Label(), payment.Status.Label())
	p.recorder.Timeline(persistCtx, order.ID, domain.TimelinePaymentRecorded,
		fmt.Sprintf("%s %s via %s", payment.Status.Label(), domain.FormatMoney(payment.Amount), req.Gateway.Label()),
		payment.CreatedAt)
	p.recorder.Publish(persistCtx, domain.AggregatePayment, payment.ID, domain.EventPaymentProcessed,
		domain.NewPaymentEvent(ownerID, payment))

	p.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   order.ID,
		"gateway":    req.Gateway.Label(),
		"status":     payment.Status.Label(),
	}).Info("payment processed")

	return payment, nil
}

// submit вызывает шлюз один раз; ошибка и паника превращаются в неуспешный исход.
func (p *Processor) submit(ctx context.Context, gw gateway.Gateway, req ProcessRequest) (outcome domain.GatewayOutcome) {
	p.metrics.PaymentStarted()
	start := time.Now()
	fault := false

	defer func() {
		if r := recover(); r != nil {
			fault = true
			outcome = domain.FaultOutcome(fmt.Errorf("%v", r))
			p.logger.WithFields(log.Fields{
				"order_id": req.OrderID,
				"gateway":  gw.Name(),
				"panic":    r,
			}).Error("payment gateway panicked")
		}
		p.metrics.RecordGatewayCall(gw.Name(), time.Since(start), fault)
		p.metrics.PaymentFinished()
	}()

	result, err := gw.Submit(ctx, req.Amount)
	if err != nil {
		fault = true
		p.logger.WithError(err).WithFields(log.Fields{
			"order_id": req.OrderID,
			"gateway":  gw.Name(),
		}).Warn("payment gateway fault")
		return domain.FaultOutcome(err)
	}
	// Transaction id имеет смысл только у успешного исхода.
	if !result.Success {
		result.TransactionID = nil
	}
	return result
}
