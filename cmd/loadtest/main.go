// Command loadtest нагружает HTTP API сервиса сценариями заказ → подтверждение → оплата
// и печатает сводку по задержкам и кодам ответов.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultQuantity = 1

func main() {
	cfg, err := parseConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		exit("invalid config: %v", err)
	}

	runID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())
	result, err := run(cfg, newFiberClient(cfg.baseURL, cfg.timeout), runID)
	if err != nil {
		exit("load test failed: %v", err)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			exit("failed to write report: %v", err)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func exit(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// runner держит по одному токену на воркера: каждый воркер работает от своего владельца.
type runner struct {
	cfg    config
	client apiClient
	tokens []string
	col    *collector
	failed atomic.Int64
}

func newRunner(cfg config, client apiClient, runID string) (*runner, error) {
	r := &runner{cfg: cfg, client: client, tokens: make([]string, cfg.concurrency), col: newCollector()}
	for i := range r.tokens {
		owner := fmt.Sprintf("%s-%s-%d", cfg.ownerTag, runID, i)
		token, err := signOwnerToken(cfg.jwtSecret, owner)
		if err != nil {
			return nil, fmt.Errorf("sign token for %s: %w", owner, err)
		}
		r.tokens[i] = token
	}
	return r, nil
}

func run(cfg config, client apiClient, runID string) (report, error) {
	r, err := newRunner(cfg, client, runID)
	if err != nil {
		return report{}, err
	}
	return r.execute(), nil
}

func (r *runner) execute() report {
	started := time.Now()
	jobs := make(chan int, 2*len(r.tokens))

	var wg sync.WaitGroup
	for _, token := range r.tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			for range jobs {
				if err := runScenario(r.client, r.cfg, token, r.col); err != nil {
					r.failed.Add(1)
				}
			}
		}(token)
	}

	ctx := context.Background()
	if r.cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.duration)
		defer cancel()
	}
	dispatchJobs(ctx, jobs, r.cfg)
	wg.Wait()

	result := r.col.buildReport(started, time.Since(started))
	if failed := r.failed.Load(); result.FailedScenarios == 0 && failed > 0 {
		result.FailedScenarios = failed
		result.ErrorRate = ratio(failed, result.TotalScenarios)
	}
	return result
}

// dispatchJobs выдаёт номера сценариев, пока не исчерпан лимит или не истёк ctx,
// и закрывает jobs. В режиме по времени лимит действует только если total задан явно.
func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	limited := cfg.duration <= 0 || cfg.totalSet
	for i := 0; !limited || i < cfg.total; i++ {
		select {
		case <-ctx.Done():
			return
		case jobs <- i:
		}
	}
}
