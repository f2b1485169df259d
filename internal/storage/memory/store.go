package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

// Store — общее in-memory состояние заказов, позиций и платежей.
// Один мьютекс на всё хранилище даёт те же гарантии, что транзакция в PostgreSQL:
// проверка платежей и удаление заказа не могут переплестись с вставкой платежа.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	orders   map[string]orderRecord
	items    map[string][]domain.OrderItem
	payments map[string][]paymentRecord // order_id -> платежи
}

type orderRecord struct {
	order domain.Order
	seq   int64
}

type paymentRecord struct {
	payment domain.Payment
	seq     int64
}

// NewStore создаёт пустое хранилище для локальной разработки и тестов.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]orderRecord),
		items:    make(map[string][]domain.OrderItem),
		payments: make(map[string][]paymentRecord),
	}
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// ownedOrder возвращает заказ владельца; вызывать под блокировкой.
func (s *Store) ownedOrder(ownerID, id string) (orderRecord, bool) {
	rec, ok := s.orders[id]
	if !ok || rec.order.OwnerID != ownerID {
		return orderRecord{}, false
	}
	return rec, true
}

func copyItems(items []domain.OrderItem) []domain.OrderItem {
	result := make([]domain.OrderItem, len(items))
	copy(result, items)
	return result
}

// paginate вырезает страницу из уже отсортированного среза.
func paginate[T any](all []T, req domain.PageRequest) domain.Page[T] {
	req = req.Normalize()
	page := domain.Page[T]{Total: len(all), Page: req.Page, PerPage: req.PerPage}

	start := req.Offset()
	if start >= len(all) {
		page.Items = []T{}
		return page
	}
	end := start + req.PerPage
	if end > len(all) {
		end = len(all)
	}
	page.Items = append([]T(nil), all[start:end]...)
	return page
}

// newestFirst сортирует записи: новые первыми, при равном времени по порядку вставки.
func newestFirst[T any](records []T, key func(T) (int64, int64)) {
	sort.Slice(records, func(i, j int) bool {
		ti, si := key(records[i])
		tj, sj := key(records[j])
		if ti != tj {
			return ti > tj
		}
		return si > sj
	})
}
