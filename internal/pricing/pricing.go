// Package pricing turns line items into a priced breakdown under the single
// global store policy. Amounts are whole FCFA.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/labstore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// MaxSubtotal is the largest cart subtotal accepted, in FCFA. It keeps
// subtotal, tax and shipping well inside int64.
const MaxSubtotal int64 = 1_000_000_000_000_000

// Policy holds the pricing constants applied to every cart, quote and order.
type Policy struct {
	TaxRatePercent        int64 `json:"tax_rate_percent"`
	FreeShippingThreshold int64 `json:"free_shipping_threshold"`
	FlatShippingCost      int64 `json:"flat_shipping_cost"`
}

// DefaultPolicy is the storefront policy: 18% tax, free shipping from 100 000 FCFA, 15 000 FCFA otherwise.
func DefaultPolicy() Policy {
	return Policy{TaxRatePercent: 18, FreeShippingThreshold: 100000, FlatShippingCost: 15000}
}

// PolicyFromConfig maps configuration onto a Policy.
func PolicyFromConfig(cfg config.PricingConfig) Policy {
	return Policy{
		TaxRatePercent:        cfg.TaxRatePercent,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingCost:      cfg.FlatShippingCost,
	}
}

// LineItem is one product/quantity/price triple.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

// LineTotal is UnitPrice * Quantity.
func (l LineItem) LineTotal() int64 {
	return l.UnitPrice * l.Quantity
}

// Breakdown is derived from a LineItem set and a Policy; it is never stored on its own.
type Breakdown struct {
	Subtotal       int64 `json:"subtotal"`
	TaxAmount      int64 `json:"tax_amount"`
	ShippingCost   int64 `json:"shipping_cost"`
	DiscountAmount int64 `json:"discount_amount"`
	Total          int64 `json:"total"`
}

// Compute prices items under policy. An empty item list carries no shipping.
// Callers reject negative prices, non-positive quantities and oversized
// discounts before calling.
func Compute(items []LineItem, policy Policy, discount int64) Breakdown {
	subtotal := Subtotal(items)
	shipping := int64(0)
	if len(items) > 0 {
		shipping = policy.Shipping(subtotal)
	}
	tax := policy.Tax(subtotal)
	return Breakdown{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingCost:   shipping,
		DiscountAmount: discount,
		Total:          subtotal + tax + shipping - discount,
	}
}

// Subtotal sums the line totals.
func Subtotal(items []LineItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.LineTotal()
	}
	return sum
}

// Tax rounds subtotal * rate / 100 half-up to a whole FCFA.
func (p Policy) Tax(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(p.TaxRatePercent)).
		Div(hundred).
		Round(0).
		IntPart()
}

// Shipping is free from the threshold upward, flat below it.
func (p Policy) Shipping(subtotal int64) int64 {
	if subtotal >= p.FreeShippingThreshold {
		return 0
	}
	return p.FlatShippingCost
}

// FreeShippingGap is how much more the cart needs to reach free shipping.
func FreeShippingGap(subtotal int64, policy Policy) int64 {
	if subtotal >= policy.FreeShippingThreshold {
		return 0
	}
	return policy.FreeShippingThreshold - subtotal
}

// Consistent reports whether Total matches the breakdown formula.
func (b Breakdown) Consistent() bool {
	return b.Total == b.Subtotal+b.TaxAmount+b.ShippingCost-b.DiscountAmount
}

// ValidateItems checks the caller preconditions of Compute and reports every
// offending field, keyed as items[i].field. A line total or subtotal above
// MaxSubtotal is rejected before it can be computed.
func ValidateItems(items []LineItem) error {
	fields := map[string]string{}
	var subtotal int64
	subtotalTooLarge := false
	for i, item := range items {
		if item.ProductID == "" {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "is required"
		}
		if item.Name == "" {
			fields[fmt.Sprintf("items[%d].name", i)] = "is required"
		}
		if item.UnitPrice < 0 {
			fields[fmt.Sprintf("items[%d].unit_price", i)] = "must not be negative"
		}
		if item.Quantity <= 0 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be positive"
		}
		if item.UnitPrice <= 0 || item.Quantity <= 0 {
			continue
		}
		if item.Quantity > MaxSubtotal/item.UnitPrice {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "line total exceeds the maximum order amount"
			continue
		}
		line := item.LineTotal()
		if subtotal > MaxSubtotal-line {
			subtotalTooLarge = true
			continue
		}
		subtotal += line
	}
	if subtotalTooLarge {
		fields["items"] = "subtotal exceeds the maximum order amount"
	}
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.Validation("invalid line items", fields)
}

// ValidateDiscount rejects negative discounts and discounts larger than the
// amount they apply to.
func ValidateDiscount(discount int64, b Breakdown) error {
	if discount < 0 {
		return pkgerrors.Validation("invalid discount", map[string]string{"discount_amount": "must not be negative"})
	}
	if discount > b.Subtotal+b.TaxAmount+b.ShippingCost {
		return pkgerrors.Validation("invalid discount", map[string]string{"discount_amount": "must not exceed the order amount"})
	}
	return nil
}
