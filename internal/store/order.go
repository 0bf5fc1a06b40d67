package store

import (
	"sync"

	"github.com/efreitasn/dexsim/internal/domain"
)

// OrderStore is a thread-safe in-memory index of every order a book has
// accepted, keyed by order id, with a secondary index by trader id.
// Orders are never removed; terminal orders stay queryable.
type OrderStore struct {
	mu           sync.RWMutex
	orders       map[string]*domain.Order
	traderOrders map[string][]*domain.Order // trader_id → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:       make(map[string]*domain.Order),
		traderOrders: make(map[string][]*domain.Order),
	}
}

// Create adds an order to the store. It returns domain.ErrDuplicateOrder
// if an order with the same id already exists.
func (s *OrderStore) Create(o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID()]; exists {
		return domain.ErrDuplicateOrder
	}
	s.orders[o.ID()] = o
	s.traderOrders[o.TraderID()] = append(s.traderOrders[o.TraderID()], o)
	return nil
}

// Get retrieves an order by id. It returns domain.ErrOrderNotFound if the
// order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// Len returns the number of orders ever stored.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// CountActive returns how many stored orders are still active.
func (s *OrderStore) CountActive() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, o := range s.orders {
		if o.IsActive() {
			n++
		}
	}
	return n
}

// ListByTrader walks a trader's orders from the most recent backwards and
// returns at most limit of them that satisfy status (nil matches any). A
// limit of zero or less returns every match. total counts all matches.
func (s *OrderStore) ListByTrader(traderID string, status *domain.OrderStatus, limit int) (orders []*domain.Order, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.traderOrders[traderID]
	orders = []*domain.Order{}
	for i := len(history) - 1; i >= 0; i-- {
		o := history[i]
		if status != nil && o.Status() != *status {
			continue
		}
		total++
		if limit <= 0 || len(orders) < limit {
			orders = append(orders, o)
		}
	}
	return orders, total
}

// Reset drops every stored order.
func (s *OrderStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]*domain.Order)
	s.traderOrders = make(map[string][]*domain.Order)
}
