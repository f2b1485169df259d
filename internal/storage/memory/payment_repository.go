package memory

import (
	"context"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

// paymentRepositoryInMemory хранит платежи в общем Store.
type paymentRepositoryInMemory struct {
	store *Store
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepositoryInMemory{store: store}
}

// Create добавляет платёж к заказу владельца.
func (r *paymentRepositoryInMemory) Create(_ context.Context, ownerID string, payment domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.ownedOrder(ownerID, payment.OrderID); !ok {
		return domain.ErrOrderNotFound
	}
	r.store.payments[payment.OrderID] = append(r.store.payments[payment.OrderID], paymentRecord{
		payment: payment,
		seq:     r.store.nextSeq(),
	})
	return nil
}

// List возвращает платежи по заказам владельца, опционально по одному заказу.
func (r *paymentRepositoryInMemory) List(_ context.Context, ownerID string, filter domain.PaymentFilter) (domain.Page[domain.Payment], error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := make([]paymentRecord, 0)
	for orderID, payments := range r.store.payments {
		if filter.OrderID != "" && orderID != filter.OrderID {
			continue
		}
		if _, ok := r.store.ownedOrder(ownerID, orderID); !ok {
			continue
		}
		records = append(records, payments...)
	}
	newestFirst(records, func(rec paymentRecord) (int64, int64) {
		return rec.payment.CreatedAt.UnixNano(), rec.seq
	})

	payments := make([]domain.Payment, 0, len(records))
	for _, rec := range records {
		payments = append(payments, rec.payment)
	}
	return paginate(payments, filter.PageRequest), nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
