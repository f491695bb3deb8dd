// Package stats derives dashboard figures from the order collection. Nothing
// is cached; every call reads the current orders.
package stats

import (
	"context"
	"fmt"

	"github.com/angelmondragon/labstore-backend/internal/orders"
	"github.com/angelmondragon/labstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
)

// Summary is always fully populated; an empty collection yields zeros.
type Summary struct {
	TotalOrders       int64                       `json:"total_orders"`
	PendingOrders     int64                       `json:"pending_orders"`
	ProcessingOrders  int64                       `json:"processing_orders"`
	ShippedOrders     int64                       `json:"shipped_orders"`
	DeliveredOrders   int64                       `json:"delivered_orders"`
	CancelledOrders   int64                       `json:"cancelled_orders"`
	ByStatus          map[enums.OrderStatus]int64 `json:"by_status"`
	TotalRevenue      int64                       `json:"total_revenue"`
	AverageOrderValue int64                       `json:"average_order_value"`
}

type orderLister interface {
	List(ctx context.Context, filter orders.Filter) ([]*orders.Order, error)
}

// Service computes summaries on demand.
type Service interface {
	Summary(ctx context.Context) (Summary, error)
}

type service struct {
	orders orderLister
}

func NewService(lister orderLister) (Service, error) {
	if lister == nil {
		return nil, fmt.Errorf("orders lister required")
	}
	return &service{orders: lister}, nil
}

func (s *service) Summary(ctx context.Context) (Summary, error) {
	list, err := s.orders.List(ctx, orders.Filter{})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return Summary{}, err
		}
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return Compute(list), nil
}

// Compute aggregates list. Revenue sums every order regardless of status.
// The average is truncated to whole FCFA.
func Compute(list []*orders.Order) Summary {
	summary := Summary{ByStatus: make(map[enums.OrderStatus]int64, len(enums.OrderStatuses()))}
	for _, status := range enums.OrderStatuses() {
		summary.ByStatus[status] = 0
	}
	for _, order := range list {
		summary.TotalOrders++
		summary.TotalRevenue += order.TotalAmount
		summary.ByStatus[order.Status]++
	}
	summary.PendingOrders = summary.ByStatus[enums.OrderStatusPending]
	summary.ProcessingOrders = summary.ByStatus[enums.OrderStatusProcessing]
	summary.ShippedOrders = summary.ByStatus[enums.OrderStatusShipped]
	summary.DeliveredOrders = summary.ByStatus[enums.OrderStatusDelivered]
	summary.CancelledOrders = summary.ByStatus[enums.OrderStatusCancelled]
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue / summary.TotalOrders
	}
	return summary
}
