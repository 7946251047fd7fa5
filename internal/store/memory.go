package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
)

// Memory keeps records in process memory. It is the default for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	baskets map[uuid.UUID]basket.Basket
	codes   map[string]discount.Code
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		baskets: make(map[uuid.UUID]basket.Basket),
		codes:   make(map[string]discount.Code),
	}
}

func (m *Memory) GetBasket(_ context.Context, id uuid.UUID) (basket.Basket, error) {
	defer observe(DriverMemory, "get_basket", time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.baskets[id]
	if !ok {
		return basket.Basket{}, basket.ErrNotFound
	}
	return b.Clone(), nil
}

func (m *Memory) SaveBasket(_ context.Context, b basket.Basket) error {
	defer observe(DriverMemory, "save_basket", time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baskets[b.ID] = b.Clone()
	return nil
}

func (m *Memory) DeleteBasket(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.baskets, id)
	return nil
}

func (m *Memory) FindActiveDiscountCode(_ context.Context, code string) (discount.Code, error) {
	defer observe(DriverMemory, "find_discount_code", time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()
	dc, ok := m.codes[code]
	if !ok || !dc.IsActive {
		return discount.Code{}, discount.ErrNotFound
	}
	return dc, nil
}

func (m *Memory) SaveDiscountCode(_ context.Context, code discount.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code.Code] = code
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
