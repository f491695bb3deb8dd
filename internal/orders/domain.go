package orders

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
)

// Customer is identified by ID; the other fields are descriptive.
type Customer struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postal_code"`
	Company    *string   `json:"company,omitempty"`
}

// PaymentInfo is the payment sub-record of an order.
type PaymentInfo struct {
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	Amount        int64               `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
}

// ShippingInfo is the shipping sub-record of an order.
type ShippingInfo struct {
	Method            enums.ShippingMethod `json:"method"`
	Cost              int64                `json:"cost"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	TrackingNumber    *string              `json:"tracking_number,omitempty"`
	Carrier           *string              `json:"carrier,omitempty"`
}

// Order is the mutable commerce record managed by the lifecycle service.
type Order struct {
	ID                uuid.UUID           `json:"id"`
	OrderNumber       string              `json:"order_number"`
	Customer          Customer            `json:"customer"`
	Items             []pricing.LineItem  `json:"items"`
	Status            enums.OrderStatus   `json:"status"`
	Priority          enums.OrderPriority `json:"priority"`
	Subtotal          int64               `json:"subtotal"`
	TaxAmount         int64               `json:"tax_amount"`
	ShippingCost      int64               `json:"shipping_cost"`
	DiscountAmount    int64               `json:"discount_amount"`
	TotalAmount       int64               `json:"total_amount"`
	Payment           PaymentInfo         `json:"payment"`
	Shipping          ShippingInfo        `json:"shipping"`
	Notes             string              `json:"notes"`
	InternalNotes     string              `json:"internal_notes"`
	Tags              []string            `json:"tags"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	EstimatedDelivery *time.Time          `json:"estimated_delivery,omitempty"`
}

// Breakdown returns the pricing fields of the order.
func (o *Order) Breakdown() pricing.Breakdown {
	return pricing.Breakdown{
		Subtotal:       o.Subtotal,
		TaxAmount:      o.TaxAmount,
		ShippingCost:   o.ShippingCost,
		DiscountAmount: o.DiscountAmount,
		Total:          o.TotalAmount,
	}
}

// ApplyBreakdown writes every pricing field at once.
func (o *Order) ApplyBreakdown(b pricing.Breakdown) {
	o.Subtotal = b.Subtotal
	o.TaxAmount = b.TaxAmount
	o.ShippingCost = b.ShippingCost
	o.DiscountAmount = b.DiscountAmount
	o.TotalAmount = b.Total
}

// Validate checks the aggregate invariants.
func (o *Order) Validate() error {
	if !o.Breakdown().Consistent() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order total does not match its breakdown").WithDetails(map[string]any{
			"subtotal":        o.Subtotal,
			"tax_amount":      o.TaxAmount,
			"shipping_cost":   o.ShippingCost,
			"discount_amount": o.DiscountAmount,
			"total_amount":    o.TotalAmount,
		})
	}
	if len(o.Items) == 0 && o.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order without items cannot leave pending")
	}
	return nil
}

// HasTag reports whether tag is attached to the order.
func (o *Order) HasTag(tag string) bool {
	_, found := slices.BinarySearch(o.Tags, tag)
	return found
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = slices.Clone(o.Items)
	cp.Tags = slices.Clone(o.Tags)
	cp.Customer.Company = clonePtr(o.Customer.Company)
	cp.Payment.TransactionID = clonePtr(o.Payment.TransactionID)
	cp.Shipping.EstimatedDelivery = clonePtr(o.Shipping.EstimatedDelivery)
	cp.Shipping.TrackingNumber = clonePtr(o.Shipping.TrackingNumber)
	cp.Shipping.Carrier = clonePtr(o.Shipping.Carrier)
	cp.EstimatedDelivery = clonePtr(o.EstimatedDelivery)
	return &cp
}

// matches reports whether the order satisfies every set field of f.
func (o *Order) matches(f Filter) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Priority != "" && o.Priority != f.Priority {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return o.containsText(q)
	}
	return true
}

func (o *Order) containsText(lowered string) bool {
	for _, field := range []string{o.OrderNumber, o.Customer.Name, o.Customer.Email} {
		if strings.Contains(strings.ToLower(field), lowered) {
			return true
		}
	}
	for _, item := range o.Items {
		if strings.Contains(strings.ToLower(item.Name), lowered) {
			return true
		}
	}
	return false
}

// normalizeTags trims, drops blanks and duplicates, and sorts.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
