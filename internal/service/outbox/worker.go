package outbox

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

// Исходы попытки публикации, которые видит Metrics.
const (
	ResultSent       = "sent"
	ResultRetryError = "retry_error"
	ResultFailed     = "failed"
	ResultDLQFailed  = "dlq_failed"
)

// Metrics принимает наблюдения воркера. *metrics.ServiceMetrics удовлетворяет интерфейсу.
type Metrics interface {
	ObserveOutboxPublish(result string)
	ObserveOutboxBacklog(pending int, oldest time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOutboxPublish(string) {}
func (noopMetrics) ObserveOutboxBacklog(int, time.Duration) {}

// WorkerOptions задаёт параметры outbox worker.
type WorkerOptions struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	Metrics        Metrics
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) { opts.Logger = logger }
}

// WithDLQPublisher задаёт publisher для сообщений, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *WorkerOptions) { opts.DLQPublisher = publisher }
}

func WithMetrics(m Metrics) Option {
	return func(opts *WorkerOptions) { opts.Metrics = m }
}

func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) { opts.PollInterval = interval }
}

func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации перед failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую задержку backoff; 0 отключает паузы между попытками.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) { opts.RetryBaseDelay = delay }
}

func (o *WorkerOptions) normalize() {
	if o.Logger == nil {
		o.Logger = log.WithField("component", "outbox-worker")
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.RetryBaseDelay < 0 {
		o.RetryBaseDelay = 0
	}
}

// Worker переносит pending-сообщения из outbox в брокер.
// Повторяется только публикация; операции над заказами и платежами не повторяются.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	opts      WorkerOptions
	backoff   backoff
	now       func() time.Time
}

func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}
	opts.normalize()

	return &Worker{
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		backoff:   backoff(opts.RetryBaseDelay),
		now:       time.Now,
	}
}

// Run опрашивает outbox каждые PollInterval до отмены ctx. Первый проход выполняется сразу.
func (w *Worker) Run(ctx context.Context) {
	logger := w.opts.Logger
	if w.repo == nil || w.publisher == nil {
		logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	logger.WithFields(log.Fields{
		"poll_interval": w.opts.PollInterval.String(),
		"batch_size":    w.opts.BatchSize,
		"max_attempts":  w.opts.MaxAttempts,
		"dlq":           w.opts.DLQPublisher != nil,
	}).Info("outbox worker started")
	defer logger.Info("outbox worker stopped")

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce забирает один батч и публикует его сообщения по порядку.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.observeBacklog(ctx)
	defer func() {
		if ctx.Err() == nil {
			w.observeBacklog(ctx)
		}
	}()

	batch, err := w.repo.PullPending(ctx, w.opts.BatchSize)
	if err != nil {
		w.opts.Logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, msg)
	}
}

// deliver публикует одно сообщение и фиксирует итог в репозитории.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) {
	logger := w.opts.Logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
	})

	publishErr := w.publish(ctx, msg)
	if publishErr == nil {
		if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
			logger.WithError(err).Warn("failed to mark outbox as sent")
		}
		return
	}

	// Отмена во время backoff: сообщение остаётся pending до следующего запуска.
	if ctx.Err() != nil {
		return
	}

	logger.WithError(publishErr).Error("outbox publish failed after retries")
	w.opts.Metrics.ObserveOutboxPublish(ResultFailed)

	if err := w.deadLetter(msg, publishErr); err != nil {
		logger.WithError(err).Warn("failed to publish to DLQ")
		w.opts.Metrics.ObserveOutboxPublish(ResultDLQFailed)
	}
	if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
		logger.WithError(err).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) publish(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, w.backoff.delay(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = w.publisher.Publish(msg)
		if lastErr == nil {
			w.opts.Metrics.ObserveOutboxPublish(ResultSent)
			return nil
		}
		w.opts.Metrics.ObserveOutboxPublish(ResultRetryError)
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.opts.MaxAttempts, lastErr)
}

func (w *Worker) deadLetter(msg domain.OutboxMessage, cause error) error {
	if w.opts.DLQPublisher == nil {
		return nil
	}
	wrapped, err := wrapDeadLetter(msg, cause, w.now())
	if err != nil {
		return err
	}
	if err := w.opts.DLQPublisher.Publish(wrapped); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.opts.Logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	w.opts.Metrics.ObserveOutboxBacklog(stats.PendingCount, stats.OldestAge(w.now()))
}
