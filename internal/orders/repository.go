package orders

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/pkg/enums"
)

// ErrNotFound is returned by repositories for unknown order ids.
var ErrNotFound = errors.New("order not found")

// ErrDuplicate is returned when an order id is already stored.
var ErrDuplicate = errors.New("order already exists")

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	Status   enums.OrderStatus
	Priority enums.OrderPriority
	// Query is a case-insensitive substring over order number, customer
	// name, customer email and item names.
	Query string
}

// Repository persists order aggregates.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	// Update loads the order, applies fn to a copy and stores the copy only
	// when fn returns nil. The stored order is returned.
	Update(ctx context.Context, id uuid.UUID, fn func(*Order) error) (*Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns matching orders newest first.
	List(ctx context.Context, filter Filter) ([]*Order, error)
	Count(ctx context.Context) (int64, error)
}

func sortNewestFirst(list []*Order) {
	slices.SortStableFunc(list, func(a, b *Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.OrderNumber, a.OrderNumber)
	})
}
