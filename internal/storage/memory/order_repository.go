package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository поверх общего Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Create сохраняет заказ и позиции, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}

	items := copyItems(order.Items)
	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = nil
	r.store.orders[order.ID] = orderRecord{order: order, seq: r.store.nextSeq()}
	r.store.items[order.ID] = items
	return nil
}

// Get возвращает заказ владельца вместе с позициями.
func (r *orderRepositoryInMemory) Get(_ context.Context, ownerID, id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.ownedOrder(ownerID, id)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order := rec.order
	order.Items = copyItems(r.store.items[id])
	return order, nil
}

// List возвращает страницу заказов владельца, новые первыми.
func (r *orderRepositoryInMemory) List(_ context.Context, ownerID string, filter domain.OrderFilter) (domain.Page[domain.Order], error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := make([]orderRecord, 0, len(r.store.orders))
	for _, rec := range r.store.orders {
		if rec.order.OwnerID != ownerID {
			continue
		}
		if filter.Status != nil && rec.order.Status != *filter.Status {
			continue
		}
		records = append(records, rec)
	}
	newestFirst(records, func(rec orderRecord) (int64, int64) {
		return rec.order.CreatedAt.UnixNano(), rec.seq
	})

	orders := make([]domain.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, rec.order)
	}
	return paginate(orders, filter.PageRequest), nil
}

// Update применяет статус и/или замену позиций под одной блокировкой.
func (r *orderRepositoryInMemory) Update(_ context.Context, ownerID, id string, upd domain.OrderUpdate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.store.ownedOrder(ownerID, id)
	if !ok {
		return domain.ErrOrderNotFound
	}

	if upd.Status != nil {
		rec.order.Status = *upd.Status
	}
	if upd.ReplaceItems {
		items := copyItems(upd.Items)
		for i := range items {
			items[i].OrderID = id
		}
		r.store.items[id] = items
		rec.order.TotalAmount = upd.TotalAmount
	}
	if !upd.UpdatedAt.IsZero() {
		rec.order.UpdatedAt = upd.UpdatedAt
	}
	r.store.orders[id] = rec
	return nil
}

// DeleteIfNoPayments удаляет заказ и его позиции, если платежей нет.
func (r *orderRepositoryInMemory) DeleteIfNoPayments(_ context.Context, ownerID, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.ownedOrder(ownerID, id); !ok {
		return false, domain.ErrOrderNotFound
	}
	if len(r.store.payments[id]) > 0 {
		return false, nil
	}

	delete(r.store.orders, id)
	delete(r.store.items, id)
	return true, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
