package orders

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Numberer assigns the display order number for an order created at the given time.
type Numberer interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// FormatNumber renders PREFIX-YEAR-SEQ with a zero-padded sequence.
func FormatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

type counter interface {
	Count(ctx context.Context) (int64, error)
}

// PositionalNumberer uses the 1-based position of the new order in the
// collection. Numbers can repeat after deletes.
type PositionalNumberer struct {
	Prefix string
	Orders counter
}

func (n PositionalNumberer) Next(ctx context.Context, at time.Time) (string, error) {
	count, err := n.Orders.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("count orders: %w", err)
	}
	return FormatNumber(n.Prefix, at.Year(), count+1), nil
}

// Sequence hands out increasing values per named sequence.
type Sequence interface {
	Next(ctx context.Context, name string) (int64, error)
	Seed(ctx context.Context, name string, floor int64) error
}

// CounterNumberer draws a monotonic per-year sequence from a shared counter.
// The first use of a year in this process seeds it past the existing orders.
type CounterNumberer struct {
	Prefix   string
	Sequence Sequence
	Orders   counter

	seeded sync.Map
}

// NewCounterNumberer builds a CounterNumberer.
func NewCounterNumberer(prefix string, seq Sequence, orders counter) *CounterNumberer {
	return &CounterNumberer{Prefix: prefix, Sequence: seq, Orders: orders}
}

func (n *CounterNumberer) Next(ctx context.Context, at time.Time) (string, error) {
	name := fmt.Sprintf("orders:%d", at.Year())
	if _, done := n.seeded.Load(name); !done {
		count, err := n.Orders.Count(ctx)
		if err != nil {
			return "", fmt.Errorf("count orders: %w", err)
		}
		if err := n.Sequence.Seed(ctx, name, count); err != nil {
			return "", fmt.Errorf("seed order sequence: %w", err)
		}
		n.seeded.Store(name, struct{}{})
	}
	seq, err := n.Sequence.Next(ctx, name)
	if err != nil {
		return "", fmt.Errorf("next order sequence: %w", err)
	}
	return FormatNumber(n.Prefix, at.Year(), seq), nil
}
