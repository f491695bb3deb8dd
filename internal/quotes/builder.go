package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/labstore-backend/internal/notifications"
	"github.com/angelmondragon/labstore-backend/internal/orders"
	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
	"github.com/angelmondragon/labstore-backend/pkg/logger"
	"github.com/angelmondragon/labstore-backend/pkg/validation"
)

// QuoteTag marks orders recorded from a quote request.
const QuoteTag = "quote"

const defaultValidityDays = 30

// Builder turns a quote request into an issued quote and its document.
type Builder interface {
	Build(ctx context.Context, req Request) (*QuoteIssued, error)
}

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (*orders.Order, error)
}

type quoteMetrics interface {
	IncQuoteBuilt()
}

// QuoteIssued is a built quote with the document rendered under the same
// policy that priced it. It is also the notification payload.
type QuoteIssued struct {
	Quote    *Quote   `json:"quote"`
	Document Document `json:"document"`
}

// Options configures the builder. Zero values fall back to the storefront defaults.
type Options struct {
	Policy         *pricing.Policy
	ValidityDays   int
	Prefix         string
	PaymentMethod  enums.PaymentMethod
	ShippingMethod enums.ShippingMethod
	IntN           func(n int) int
	Now            func() time.Time
	Dispatcher     notifications.Dispatcher
	Metrics        quoteMetrics
	Logger         *logger.Logger
}

type builder struct {
	orders         orderCreator
	policy         pricing.Policy
	validityDays   int
	numbers        NumberGenerator
	paymentMethod  enums.PaymentMethod
	shippingMethod enums.ShippingMethod
	now            func() time.Time
	dispatcher     notifications.Dispatcher
	metrics        quoteMetrics
	logg           *logger.Logger
}

// NewBuilder wires the quote builder to the order lifecycle service.
func NewBuilder(orderSvc orderCreator, opts Options) (Builder, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	b := &builder{
		orders:         orderSvc,
		policy:         pricing.DefaultPolicy(),
		validityDays:   opts.ValidityDays,
		numbers:        NumberGenerator{Prefix: opts.Prefix, IntN: opts.IntN},
		paymentMethod:  opts.PaymentMethod,
		shippingMethod: opts.ShippingMethod,
		now:            opts.Now,
		dispatcher:     opts.Dispatcher,
		metrics:        opts.Metrics,
		logg:           opts.Logger,
	}
	if opts.Policy != nil {
		b.policy = *opts.Policy
	}
	if b.validityDays <= 0 {
		b.validityDays = defaultValidityDays
	}
	if b.numbers.Prefix == "" {
		b.numbers.Prefix = "DEV"
	}
	if b.paymentMethod == "" {
		b.paymentMethod = enums.PaymentMethodBankTransfer
	}
	if b.shippingMethod == "" {
		b.shippingMethod = enums.ShippingMethodStandard
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

func (b *builder) Build(ctx context.Context, req Request) (*QuoteIssued, error) {
	req.Contact = req.Contact.trimmed()
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.EmptyCart("quote requires at least one line item")
	}
	if err := pricing.ValidateItems(req.Items); err != nil {
		return nil, err
	}

	now := b.now().UTC()
	quote := &Quote{
		Number:     b.numbers.Next(now),
		Date:       now,
		Contact:    req.Contact,
		Items:      append([]pricing.LineItem(nil), req.Items...),
		Totals:     pricing.Compute(req.Items, b.policy, 0),
		ValidUntil: now.AddDate(0, 0, b.validityDays),
		Message:    req.Message,
	}

	order, err := b.orders.Create(ctx, b.orderInput(quote))
	if err != nil {
		return nil, err
	}
	quote.OrderID = order.ID
	quote.OrderNumber = order.OrderNumber

	if b.metrics != nil {
		b.metrics.IncQuoteBuilt()
	}
	logCtx := b.logg.WithQuoteNumber(ctx, quote.Number)
	logCtx = b.logg.WithFields(logCtx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total":        quote.Totals.Total,
	})
	b.logg.Info(logCtx, "quote.built")

	issued := &QuoteIssued{Quote: quote, Document: NewDocument(quote, b.policy)}
	if b.dispatcher != nil {
		event := notifications.NewEvent(enums.NotificationQuoteIssued, quote.Number, *issued, now)
		if !b.dispatcher.Enqueue(ctx, event) {
			b.logg.Warn(logCtx, "quote.dispatch_failed")
		}
	}
	return issued, nil
}

func (b *builder) orderInput(q *Quote) orders.CreateInput {
	establishment := q.Contact.Establishment
	return orders.CreateInput{
		Customer: orders.CustomerInput{
			Name:    q.Contact.FullName(),
			Email:   q.Contact.Email,
			Phone:   q.Contact.Phone,
			Address: q.Contact.Address,
			City:    q.Contact.City,
			Country: q.Contact.Country,
			Company: &establishment,
		},
		Items:         q.Items,
		Payment:       orders.PaymentChoice{Method: b.paymentMethod},
		Shipping:      orders.ShippingChoice{Method: b.shippingMethod},
		Priority:      enums.OrderPriorityMedium,
		Notes:         q.Message,
		InternalNotes: "Devis " + q.Number,
		Tags:          []string{QuoteTag},
		Source:        orders.SourceQuote,
	}
}
