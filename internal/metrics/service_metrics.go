package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServiceMetrics содержит метрики заказов, платежей и обращений к шлюзам.
// Все методы безопасно вызывать на nil.
type ServiceMetrics struct {
	// Заказы
	ordersCreated      prometheus.Counter
	ordersUpdated      prometheus.Counter
	ordersDeleted      prometheus.Counter
	orderDeleteBlocked prometheus.Counter

	// Платежи
	paymentsProcessed *prometheus.CounterVec
	paymentsRejected  *prometheus.CounterVec
	gatewayDuration   *prometheus.HistogramVec
	gatewayFaults     *prometheus.CounterVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Публикация outbox
	outboxPublish     *prometheus.CounterVec
	outboxPending     prometheus.Gauge
	outboxOldestAge   prometheus.Gauge

	inFlightPayments prometheus.Gauge

	// HTTP API
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewServiceMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewServiceMetrics() *ServiceMetrics {
	return NewServiceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewServiceMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewServiceMetricsWithRegisterer(registerer prometheus.Registerer) *ServiceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ServiceMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderpay_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersUpdated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderpay_orders_updated_total",
			Help: "Total number of order updates applied",
		}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderpay_orders_deleted_total",
			Help: "Total number of orders deleted",
		}),
		orderDeleteBlocked: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderpay_order_delete_blocked_total",
			Help: "Total number of order deletions refused because payments exist",
		}),
		paymentsProcessed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderpay_payments_processed_total",
			Help: "Total number of recorded payments grouped by gateway and status",
		}, []string{"gateway", "status"}),
		paymentsRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderpay_payments_rejected_total",
			Help: "Total number of payment requests rejected before reaching a gateway",
		}, []string{"reason"}),
		gatewayDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderpay_gateway_submit_duration_seconds",
			Help:    "Duration of gateway submit calls in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"gateway"}),
		gatewayFaults: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderpay_gateway_faults_total",
			Help: "Total number of gateway calls that failed with an error or panic",
		}, []string{"gateway"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderpay_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderpay_outbox_events_total",
			Help: "Total number of events enqueued into outbox",
		}),
		outboxPublish: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderpay_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result",
		}, []string{"result"}),
		outboxPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderpay_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox",
		}),
		outboxOldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderpay_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		}),
		inFlightPayments: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderpay_payments_in_flight",
			Help: "Number of payments currently waiting for a gateway",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderpay_http_requests_total",
			Help: "Total number of HTTP API requests grouped by method, route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderpay_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	return register(registerer, opts.Name, prometheus.NewCounter(opts))
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	return register(registerer, opts.Name, prometheus.NewGauge(opts))
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return register(registerer, opts.Name, prometheus.NewCounterVec(opts, labels))
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	return register(registerer, opts.Name, prometheus.NewHistogramVec(opts, labels))
}

// register регистрирует коллектор или возвращает уже зарегистрированный того же типа.
func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *ServiceMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderUpdated увеличивает счётчик изменений заказов.
func (m *ServiceMetrics) RecordOrderUpdated() {
	if m == nil {
		return
	}
	m.ordersUpdated.Inc()
}

// RecordOrderDeleted учитывает попытку удаления: успешную или заблокированную платежами.
func (m *ServiceMetrics) RecordOrderDeleted(deleted bool) {
	if m == nil {
		return
	}
	if deleted {
		m.ordersDeleted.Inc()
		return
	}
	m.orderDeleteBlocked.Inc()
}

// RecordPayment учитывает сохранённый платёж.
func (m *ServiceMetrics) RecordPayment(gateway, status string) {
	if m == nil {
		return
	}
	m.paymentsProcessed.WithLabelValues(gateway, status).Inc()
}

// RecordPaymentRejected учитывает запрос, отклонённый до обращения к шлюзу.
func (m *ServiceMetrics) RecordPaymentRejected(reason string) {
	if m == nil {
		return
	}
	m.paymentsRejected.WithLabelValues(reason).Inc()
}

// RecordGatewayCall записывает длительность вызова шлюза и сбой, если он был.
func (m *ServiceMetrics) RecordGatewayCall(gateway string, duration time.Duration, fault bool) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(gateway).Observe(duration.Seconds())
	if fault {
		m.gatewayFaults.WithLabelValues(gateway).Inc()
	}
}

// PaymentStarted увеличивает количество платежей в работе.
func (m *ServiceMetrics) PaymentStarted() {
	if m == nil {
		return
	}
	m.inFlightPayments.Inc()
}

// PaymentFinished уменьшает количество платежей в работе.
func (m *ServiceMetrics) PaymentFinished() {
	if m == nil {
		return
	}
	m.inFlightPayments.Dec()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *ServiceMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *ServiceMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// ObserveOutboxPublish учитывает исход попытки публикации: sent, retry_error, failed, dlq_failed.
func (m *ServiceMetrics) ObserveOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.outboxPublish.WithLabelValues(result).Inc()
}

// ObserveOutboxBacklog выставляет размер очереди outbox и возраст самой старой записи.
func (m *ServiceMetrics) ObserveOutboxBacklog(pending int, oldest time.Duration) {
	if m == nil {
		return
	}
	if oldest < 0 {
		oldest = 0
	}
	m.outboxPending.Set(float64(pending))
	m.outboxOldestAge.Set(oldest.Seconds())
}

// RecordHTTPRequest учитывает обработанный HTTP-запрос. В route передаётся шаблон маршрута, а не фактический путь.
func (m *ServiceMetrics) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
