// Package health отдаёт состояние сервиса для оркестратора: /healthz, /livez, /readyz.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Status компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет одну зависимость.
type Checker interface {
	Check() Check
}

type namedChecker struct {
	name    string
	checker Checker
}

// Handler хранит зарегистрированные проверки и обслуживает HTTP-пробы.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	version   string
	startTime time.Time
}

func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterChecker добавляет проверку; повторная регистрация имени заменяет прежнюю.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// snapshot возвращает проверки в порядке имён.
func (h *Handler) snapshot() []namedChecker {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := make([]namedChecker, 0, len(h.checkers))
	for name, checker := range h.checkers {
		list = append(list, namedChecker{name: name, checker: checker})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	return list
}

// runChecks выполняет проверки параллельно. Результаты идут в том же порядке, что и checkers.
func runChecks(checkers []namedChecker) []Check {
	results := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i, nc := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = c.Check()
		}(i, nc.checker)
	}
	wg.Wait()
	return results
}

func aggregate(checks []Check) Status {
	overall := StatusHealthy
	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checkers := h.snapshot()
	results := runChecks(checkers)

	byName := make(map[string]Check, len(results))
	for i, check := range results {
		byName[checkers[i].name] = check
	}

	response := Response{
		Status:        aggregate(results),
		Timestamp:     time.Now(),
		Checks:        byName,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	code := http.StatusOK
	if response.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready выполняет проверки и возвращает имя первого (по алфавиту) неготового компонента.
// Degraded готовность не снимает.
func (h *Handler) Ready() (bool, string) {
	checkers := h.snapshot()
	for i, check := range runChecks(checkers) {
		if check.Status == StatusUnhealthy {
			return false, checkers[i].name
		}
	}
	return true, ""
}

func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if ready, component := h.Ready(); !ready {
		w.Header().Set("X-Not-Ready-Component", component)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// funcChecker превращает функцию в Checker. timeout > 0 ограничивает вызов контекстом.
type funcChecker struct {
	name    string
	timeout time.Duration
	fn      func(ctx context.Context) error
}

// NewSimpleChecker оборачивает синхронную проверку без контекста.
func NewSimpleChecker(name string, checkFn func() error) Checker {
	return &funcChecker{name: name, fn: func(context.Context) error { return checkFn() }}
}

// NewPingChecker проверяет внешнюю зависимость (БД, брокер) с ограничением по времени.
// timeout <= 0 заменяется значением по умолчанию.
func NewPingChecker(name string, timeout time.Duration, ping func(ctx context.Context) error) Checker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &funcChecker{name: name, timeout: timeout, fn: ping}
}

func (c *funcChecker) Check() Check {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.fn(ctx)
	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}
