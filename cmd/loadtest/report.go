package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// scenarioMetric агрегирует сценарии целиком, отдельно от эндпоинтов.
const scenarioMetric = "scenario"

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type endpointReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time                 `json:"started_at"`
	DurationSeconds   float64                   `json:"duration_seconds"`
	TotalScenarios    int64                     `json:"total_scenarios"`
	SuccessScenarios  int64                     `json:"success_scenarios"`
	FailedScenarios   int64                     `json:"failed_scenarios"`
	ErrorRate         float64                   `json:"error_rate"`
	RPS               float64                   `json:"rps"`
	ScenarioLatencyMs latencySummary            `json:"scenario_latency_ms"`
	Endpoints         map[string]endpointReport `json:"endpoints"`
	PaymentOutcomes   map[string]int64          `json:"payment_outcomes,omitempty"`
}

// series копит результаты одного эндпоинта.
type series struct {
	codes   map[string]int64
	samples []float64
	ok      int64
}

func (s *series) add(latency time.Duration, code int) {
	if isSuccess(code) {
		s.ok++
	}
	s.codes[codeLabel(code)]++
	s.samples = append(s.samples, float64(latency.Microseconds())/1000)
}

func (s *series) report() endpointReport {
	calls := int64(len(s.samples))
	return endpointReport{
		Calls:     calls,
		Success:   s.ok,
		Failed:    calls - s.ok,
		ErrorRate: ratio(calls-s.ok, calls),
		Codes:     copyCounts(s.codes),
		LatencyMs: buildLatencySummary(s.samples),
	}
}

// collector безопасен для конкурентной записи из воркеров.
type collector struct {
	mu       sync.Mutex
	series   map[string]*series
	payments map[string]int64
}

func newCollector() *collector {
	return &collector{series: map[string]*series{}, payments: map[string]int64{}}
}

// record учитывает вызов. code == 0 означает транспортную ошибку без ответа.
func (c *collector) record(endpoint string, latency time.Duration, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.series[endpoint]
	if s == nil {
		s = &series{codes: map[string]int64{}}
		c.series[endpoint] = s
	}
	s.add(latency, code)
}

func (c *collector) recordPayment(statusLabel string) {
	c.mu.Lock()
	c.payments[statusLabel]++
	c.mu.Unlock()
}

func (c *collector) snapshot(name string) (endpointReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.series[name]; ok {
		return s.report(), true
	}
	return endpointReport{}, false
}

func (c *collector) buildReport(startedAt time.Time, elapsed time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Endpoints:       make(map[string]endpointReport, len(c.series)),
	}
	for name, s := range c.series {
		r.Endpoints[name] = s.report()
	}
	if scenarios, ok := r.Endpoints[scenarioMetric]; ok {
		r.TotalScenarios = scenarios.Calls
		r.SuccessScenarios = scenarios.Success
		r.FailedScenarios = scenarios.Failed
		r.ErrorRate = scenarios.ErrorRate
		r.ScenarioLatencyMs = scenarios.LatencyMs
	}
	if elapsed > 0 {
		r.RPS = float64(r.TotalScenarios) / elapsed.Seconds()
	}
	if len(c.payments) > 0 {
		r.PaymentOutcomes = copyCounts(c.payments)
	}
	return r
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

func codeLabel(code int) string {
	if code == 0 {
		return "transport_error"
	}
	return strconv.Itoa(code)
}

// writeJSONReport пишет отчёт только внутрь текущего каталога.
func writeJSONReport(path string, result report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// #nosec G306 -- local load-test report.
	return os.WriteFile(clean, append(data, '\n'), 0o644)
}

func printReport(w io.Writer, r report, cfg config) {
	lat := r.ScenarioLatencyMs
	lines := []string{
		"Load test summary",
		fmt.Sprintf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f",
			cfg.mode, cfg.target(), r.TotalScenarios, r.SuccessScenarios, r.FailedScenarios, r.ErrorRate),
		fmt.Sprintf("duration=%.2fs rps=%.2f", r.DurationSeconds, r.RPS),
		fmt.Sprintf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f",
			lat.Min, lat.Avg, lat.P50, lat.P95, lat.P99, lat.Max),
	}

	for _, name := range sortedKeys(r.Endpoints) {
		if name == scenarioMetric {
			continue
		}
		e := r.Endpoints[name]
		lines = append(lines, fmt.Sprintf("%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms",
			name, e.Calls, e.Success, e.Failed, e.ErrorRate, e.LatencyMs.P95))
	}

	if len(r.PaymentOutcomes) > 0 {
		outcomes := make([]string, 0, len(r.PaymentOutcomes))
		for _, label := range sortedKeys(r.PaymentOutcomes) {
			outcomes = append(outcomes, fmt.Sprintf("%s=%d", label, r.PaymentOutcomes[label]))
		}
		lines = append(lines, "payments: "+strings.Join(outcomes, " "))
	}

	_, _ = io.WriteString(w, strings.Join(lines, "\n")+"\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует линейно между соседними рангами отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo, hi := math.Floor(rank), math.Ceil(rank)
	a, b := sorted[int(lo)], sorted[int(hi)]
	return a + (b-a)*(rank-lo)
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
