package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order
}

// NewMemoryRepository returns an in-process order store.
func NewMemoryRepository() Repository {
	return &memoryRepository{orders: make(map[uuid.UUID]*Order)}
}

func (r *memoryRepository) Create(ctx context.Context, order *Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order %s: %w", order.ID, ErrDuplicate)
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

func (r *memoryRepository) Update(ctx context.Context, id uuid.UUID, fn func(*Order) error) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	draft := current.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	r.orders[id] = draft
	return draft.Clone(), nil
}

func (r *memoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Order, 0, len(r.orders))
	for _, order := range r.orders {
		if order.matches(filter) {
			out = append(out, order.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *memoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.orders)), nil
}
