package quotes

import (
	"fmt"

	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/pkg/money"
)

const dateLayout = "02/01/2006"

// Document is the fixed-layout view of a quote consumed by the print/PDF renderer.
type Document struct {
	Title      string        `json:"title"`
	Number     string        `json:"number"`
	Date       string        `json:"date"`
	ValidUntil string        `json:"valid_until"`
	Recipient  Recipient     `json:"recipient"`
	Rows       []DocumentRow `json:"rows"`
	Subtotal   string        `json:"subtotal"`
	TaxLabel   string        `json:"tax_label"`
	Tax        string        `json:"tax"`
	Shipping   string        `json:"shipping"`
	Discount   string        `json:"discount,omitempty"`
	Total      string        `json:"total"`
	Message    string        `json:"message,omitempty"`
	Validity   string        `json:"validity"`
}

type Recipient struct {
	Name          string `json:"name"`
	Establishment string `json:"establishment"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city"`
}

type DocumentRow struct {
	Reference   string `json:"reference"`
	Designation string `json:"designation"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

// NewDocument formats q for rendering. Amounts use French digit grouping.
func NewDocument(q *Quote, policy pricing.Policy) Document {
	doc := Document{
		Title:      "DEVIS",
		Number:     q.Number,
		Date:       q.Date.Format(dateLayout),
		ValidUntil: q.ValidUntil.Format(dateLayout),
		Recipient: Recipient{
			Name:          q.Contact.FullName(),
			Establishment: q.Contact.Establishment,
			Email:         q.Contact.Email,
			Phone:         q.Contact.Phone,
			Address:       q.Contact.Address,
			City:          q.Contact.City,
		},
		Rows:     make([]DocumentRow, 0, len(q.Items)),
		Subtotal: money.Format(q.Totals.Subtotal),
		TaxLabel: fmt.Sprintf("TVA (%d%%)", policy.TaxRatePercent),
		Tax:      money.Format(q.Totals.TaxAmount),
		Shipping: money.Format(q.Totals.ShippingCost),
		Total:    money.Format(q.Totals.Total),
		Message:  q.Message,
		Validity: "Devis valable jusqu'au " + q.ValidUntil.Format(dateLayout),
	}
	if q.Totals.ShippingCost == 0 {
		doc.Shipping = "Gratuite"
	}
	if q.Totals.DiscountAmount > 0 {
		doc.Discount = "-" + money.Format(q.Totals.DiscountAmount)
	}
	for _, item := range q.Items {
		doc.Rows = append(doc.Rows, DocumentRow{
			Reference:   item.ProductID,
			Designation: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   money.Format(item.UnitPrice),
			Total:       money.Format(item.LineTotal()),
		})
	}
	return doc
}
