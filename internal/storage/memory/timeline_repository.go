package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

type timelineRepository struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
	clock   func() time.Time
}

// NewTimelineRepository хранит историю заказов в памяти процесса.
// Заказ не проверяется: события пишутся по любому order_id.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepository{
		byOrder: make(map[string][]domain.TimelineEvent),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Append вставляет событие по времени Occurred. События с одинаковым временем остаются в порядке записи.
func (r *timelineRepository) Append(_ context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = r.clock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.byOrder[event.OrderID]
	at := sort.Search(len(history), func(i int) bool {
		return history[i].Occurred.After(event.Occurred)
	})
	history = append(history, domain.TimelineEvent{})
	copy(history[at+1:], history[at:])
	history[at] = event
	r.byOrder[event.OrderID] = history
	return nil
}

func (r *timelineRepository) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent{}, r.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
