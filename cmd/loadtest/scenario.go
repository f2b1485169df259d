package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	httpapi "github.com/vladislavdragonenkov/orderpay/internal/transport/http"
)

const (
	endpointCreateOrder    = "POST /api/orders"
	endpointConfirmOrder   = "PATCH /api/orders/:id"
	endpointProcessPayment = "POST /api/payments"
)

// apiClient выполняет один JSON-запрос к API. Возвращает HTTP-код;
// 0 означает, что ответ не был получен.
type apiClient interface {
	Do(method, path, token string, body, out any) (int, error)
}

type fiberClient struct {
	baseURL string
	timeout time.Duration
}

func newFiberClient(baseURL string, timeout time.Duration) *fiberClient {
	return &fiberClient{baseURL: baseURL, timeout: timeout}
}

func (c *fiberClient) Do(method, path, token string, body, out any) (int, error) {
	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	agent.Timeout(c.timeout)
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		agent.JSON(body)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, fmt.Errorf("prepare request: %w", err)
	}

	code, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	if out != nil && code >= 200 && code < 300 && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return code, fmt.Errorf("decode response: %w", err)
		}
	}
	if code < 200 || code >= 300 {
		return code, fmt.Errorf("%s %s: unexpected status %d: %s", method, path, code, string(raw))
	}
	return code, nil
}

type orderView struct {
	ID          string `json:"id"`
	TotalAmount string `json:"total_amount"`
}

type paymentView struct {
	ID          string `json:"id"`
	StatusLabel string `json:"status_label"`
}

func signOwnerToken(secret, ownerID string) (string, error) {
	return httpapi.SignToken(secret, ownerID, nil)
}

// runScenario прогоняет жизненный цикл одного заказа. Число шагов задаёт режим:
// создание, затем подтверждение, затем оплата.
func runScenario(client apiClient, cfg config, token string, col *collector) (err error) {
	started := time.Now()
	code := http.StatusOK
	defer func() { col.record(scenarioMetric, time.Since(started), code) }()

	s := scenario{client: client, cfg: cfg, token: token, col: col}
	steps := []func() (int, error){s.create, s.confirm, s.pay}
	for _, step := range steps[:cfg.mode.steps()] {
		if code, err = step(); err != nil {
			return err
		}
	}
	code = http.StatusOK
	return nil
}

// scenario хранит состояние между шагами одного прогона.
type scenario struct {
	client apiClient
	cfg    config
	token  string
	col    *collector
	order  orderView
}

func (s *scenario) create() (int, error) {
	body := map[string]any{
		"items": []map[string]any{
			{"product_name": s.cfg.product, "quantity": defaultQuantity, "unit_price": s.cfg.unitPrice},
		},
	}
	code, err := s.call(endpointCreateOrder, http.MethodPost, "/api/orders", body, &s.order)
	if err != nil {
		return code, err
	}
	if s.order.ID == "" {
		return http.StatusInternalServerError, errors.New("create response returned empty order id")
	}
	return code, nil
}

func (s *scenario) confirm() (int, error) {
	body := map[string]any{"status": int(domain.OrderStatusConfirmed)}
	return s.call(endpointConfirmOrder, http.MethodPatch, "/api/orders/"+s.order.ID, body, nil)
}

func (s *scenario) pay() (int, error) {
	body := map[string]any{
		"order_id": s.order.ID,
		"amount":   s.order.TotalAmount,
		"gateway":  int(s.cfg.gateway),
	}
	var paid paymentView
	code, err := s.call(endpointProcessPayment, http.MethodPost, "/api/payments", body, &paid)
	if err == nil {
		s.col.recordPayment(paid.StatusLabel)
	}
	return code, err
}

// call замеряет один запрос. Ошибка при успешном коде (например, битый JSON) учитывается как 500.
func (s *scenario) call(endpoint, method, path string, body, out any) (int, error) {
	started := time.Now()
	code, err := s.client.Do(method, path, s.token, body, out)
	s.col.record(endpoint, time.Since(started), code)
	if err != nil && isSuccess(code) {
		code = http.StatusInternalServerError
	}
	return code, err
}
