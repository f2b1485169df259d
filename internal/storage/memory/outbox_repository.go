package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

type outboxState uint8

const (
	outboxPending outboxState = iota
	outboxSent
	outboxFailed
)

type outboxEntry struct {
	msg      domain.OutboxMessage
	state    outboxState
	attempts int
	created  time.Time
	updated  time.Time
}

// OutboxRepository держит очередь outbox в памяти. Записи лежат в срезе в порядке Enqueue,
// поэтому отдельный счётчик последовательности не нужен.
type OutboxRepository struct {
	mu      sync.RWMutex
	entries []*outboxEntry
	byID    map[string]*outboxEntry
	clock   func() time.Time
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		byID:  make(map[string]*outboxEntry),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (r *OutboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &outboxEntry{msg: msg, state: outboxPending, created: now, updated: now}
	r.entries = append(r.entries, entry)
	r.byID[msg.ID] = entry
	return msg, nil
}

func (r *OutboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = domain.DefaultOutboxPullLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.pending(limit), nil
}

func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, e := range r.entries {
		if e.state != outboxPending {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = e.created
		}
		stats.PendingCount++
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.transition(id, outboxSent)
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.transition(id, outboxFailed)
}

// AllPending возвращает все неотправленные сообщения в порядке записи.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.pending(0)
}

// pending собирает до limit сообщений (limit <= 0 без ограничения); вызывать под блокировкой.
func (r *OutboxRepository) pending(limit int) []domain.OutboxMessage {
	out := []domain.OutboxMessage{}
	for _, e := range r.entries {
		if e.state != outboxPending {
			continue
		}
		out = append(out, e.msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (r *OutboxRepository) transition(id string, to outboxState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	entry.state = to
	entry.attempts++
	entry.updated = r.clock()
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
