package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// Compile-time interface checks.
var _ OrderStore = (*MemoryStore)(nil)
var _ LedgerStore = (*MemoryStore)(nil)

type holdingKey struct {
	portfolioID string
	isin        string
}

// MemoryStore implements OrderStore and LedgerStore with in-memory
// maps. It backs paper mode and tests; data does not survive a restart.
type MemoryStore struct {
	mu           sync.Mutex
	startingCash decimal.Decimal
	nextID       int64
	orders       map[int64]domain.Order
	cash         map[string]decimal.Decimal
	holdings     map[holdingKey]decimal.Decimal
}

// NewMemoryStore creates an empty MemoryStore. Portfolios read through
// it start with startingCash and zero holdings.
func NewMemoryStore(startingCash decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		startingCash: startingCash,
		nextID:       1,
		orders:       make(map[int64]domain.Order),
		cash:         make(map[string]decimal.Decimal),
		holdings:     make(map[holdingKey]decimal.Decimal),
	}
}

// CreateOrder assigns the next id and stores a copy of the order.
func (s *MemoryStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = s.nextID
	s.nextID++
	s.orders[order.ID] = *order
	return nil
}

// GetOrder returns a copy of the stored order.
func (s *MemoryStore) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrOrderNotFound, id)
	}
	return &o, nil
}

// UpdateOrder replaces the stored record.
func (s *MemoryStore) UpdateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; !ok {
		return fmt.Errorf("%w: id %d", domain.ErrOrderNotFound, order.ID)
	}
	s.orders[order.ID] = *order
	return nil
}

// ListOrders returns orders with the given status (all when empty),
// ordered by id.
func (s *MemoryStore) ListOrders(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.orders))
	for id := int64(1); id < s.nextID; id++ {
		o, ok := s.orders[id]
		if !ok {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// GetCash returns the balance, defaulting to the starting cash.
func (s *MemoryStore) GetCash(_ context.Context, portfolioID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount, ok := s.cash[portfolioID]; ok {
		return amount, nil
	}
	return s.startingCash, nil
}

// SetCash upserts the balance.
func (s *MemoryStore) SetCash(_ context.Context, portfolioID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cash[portfolioID] = amount
	return nil
}

// GetHolding returns the quantity, defaulting to zero.
func (s *MemoryStore) GetHolding(_ context.Context, portfolioID, isin string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty, ok := s.holdings[holdingKey{portfolioID, isin}]; ok {
		return qty, nil
	}
	return decimal.Zero, nil
}

// SetHolding upserts the quantity.
func (s *MemoryStore) SetHolding(_ context.Context, portfolioID, isin string, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings[holdingKey{portfolioID, isin}] = qty
	return nil
}
