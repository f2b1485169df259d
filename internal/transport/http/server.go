// Package httpapi реализует REST API заказов и платежей поверх fiber.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/metrics"
	"github.com/vladislavdragonenkov/orderpay/internal/service/order"
	"github.com/vladislavdragonenkov/orderpay/internal/service/payment"
)

// OrderService описывает операции над заказами, нужные API.
type OrderService interface {
	Create(ctx context.Context, ownerID string, items []order.ItemInput) (domain.Order, error)
	List(ctx context.Context, ownerID string, filter domain.OrderFilter) (domain.Page[domain.Order], error)
	Get(ctx context.Context, ownerID, orderID string) (domain.Order, error)
	Update(ctx context.Context, ownerID, orderID string, patch order.OrderPatch) (domain.Order, error)
	Delete(ctx context.Context, ownerID, orderID string) (bool, error)
	Timeline(ctx context.Context, ownerID, orderID string) ([]domain.TimelineEvent, error)
}

// PaymentService описывает операции над платежами, нужные API.
type PaymentService interface {
	List(ctx context.Context, ownerID string, filter domain.PaymentFilter) (domain.Page[domain.Payment], error)
	Process(ctx context.Context, ownerID string, req payment.ProcessRequest) (domain.Payment, error)
}

// Config задаёт параметры HTTP API.
type Config struct {
	JWTSecret string
	// RequestTimeout ограничивает время обработки запроса сервисами. 0 отключает ограничение.
	RequestTimeout time.Duration
	Metrics        *metrics.ServiceMetrics
	Logger         *log.Entry
}

// Handler связывает маршруты API с сервисами.
type Handler struct {
	orders   OrderService
	payments PaymentService
	timeout  time.Duration
	logger   *log.Entry
}

// NewHandler создаёт обработчик API.
func NewHandler(orders OrderService, payments PaymentService, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		orders:   orders,
		payments: payments,
		timeout:  cfg.RequestTimeout,
		logger:   logger,
	}
}

// NewApp собирает fiber-приложение с маршрутами /api под JWT.
func NewApp(orders OrderService, payments PaymentService, cfg Config) *fiber.App {
	h := NewHandler(orders, payments, cfg)

	app := fiber.New(fiber.Config{
		AppName:               "orderpay",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(h.logger),
	})
	app.Use(requestid.New())
	app.Use(accessLog(h.logger, cfg.Metrics))
	app.Use(recover.New())

	api := app.Group("/api", newAuthMiddleware(cfg.JWTSecret))
	h.RegisterProtectedRoutes(api)

	return app
}

// RegisterProtectedRoutes регистрирует маршруты, требующие аутентификации.
func (h *Handler) RegisterProtectedRoutes(router fiber.Router) {
	router.Get("/orders", h.listOrders)
	router.Post("/orders", h.createOrder)
	router.Get("/orders/:id", h.getOrder)
	router.Put("/orders/:id", h.updateOrder)
	router.Patch("/orders/:id", h.updateOrder)
	router.Delete("/orders/:id", h.deleteOrder)
	router.Get("/orders/:id/timeline", h.orderTimeline)

	router.Get("/payments", h.listPayments)
	router.Post("/payments", h.processPayment)
}

// requestContext возвращает контекст запроса с таймаутом обработчика.
func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

func accessLog(logger *log.Entry, serviceMetrics *metrics.ServiceMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Ошибку превращаем в ответ здесь, чтобы залогировать итоговый статус.
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		duration := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path
		serviceMetrics.RecordHTTPRequest(c.Method(), route, status, duration)

		entry := logger.WithFields(log.Fields{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"request_id":  c.GetRespHeader(fiber.HeaderXRequestID),
		})
		if status >= fiber.StatusInternalServerError {
			entry.Warn("request completed")
		} else {
			entry.Debug("request completed")
		}
		return nil
	}
}
