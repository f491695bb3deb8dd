package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
	"github.com/angelmondragon/labstore-backend/pkg/logger"
	"github.com/angelmondragon/labstore-backend/pkg/validation"
)

// Order creation sources, used as a metric label.
const (
	SourceAdmin = "admin"
	SourceQuote = "quote"
)

// FilterAll is the wildcard accepted by ByStatus and ByPriority.
const FilterAll = "all"

// Service exposes the order lifecycle operations and the read-side queries.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Order, error)
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter Filter) ([]*Order, error)
	ByStatus(ctx context.Context, status string) ([]*Order, error)
	ByPriority(ctx context.Context, priority string) ([]*Order, error)
	Search(ctx context.Context, query string) ([]*Order, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*Order, error)
	SetPriority(ctx context.Context, id uuid.UUID, priority enums.OrderPriority) (*Order, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) (*Order, error)
	UpdateShipping(ctx context.Context, id uuid.UUID, update ShippingUpdate) (*Order, error)
	AddNote(ctx context.Context, id uuid.UUID, text string, internal bool) (*Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type metricsRecorder interface {
	IncOrderCreated(source string)
	IncStatusChange(from, to string)
}

// Options carries the optional collaborators of the service. Zero values
// fall back to the storefront defaults.
type Options struct {
	Policy         *pricing.Policy
	Transitions    TransitionPolicy
	NoteMode       NoteMode
	LeadTimes      LeadTimes
	DefaultCountry string
	Now            func() time.Time
	Metrics        metricsRecorder
	Logger         *logger.Logger
}

type service struct {
	repo           Repository
	numberer       Numberer
	policy         pricing.Policy
	transitions    TransitionPolicy
	noteMode       NoteMode
	leadTimes      LeadTimes
	defaultCountry string
	now            func() time.Time
	metrics        metricsRecorder
	logg           *logger.Logger

	// createMu serializes numbering and insert so positional numbers stay sequential.
	createMu sync.Mutex
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, numberer Numberer, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if numberer == nil {
		return nil, fmt.Errorf("order numberer required")
	}
	s := &service{
		repo:           repo,
		numberer:       numberer,
		policy:         pricing.DefaultPolicy(),
		transitions:    opts.Transitions,
		noteMode:       opts.NoteMode,
		leadTimes:      opts.LeadTimes,
		defaultCountry: opts.DefaultCountry,
		now:            opts.Now,
		metrics:        opts.Metrics,
		logg:           opts.Logger,
	}
	if opts.Policy != nil {
		s.policy = *opts.Policy
	}
	if s.transitions == nil {
		s.transitions = PermissivePolicy{}
	}
	if s.noteMode == "" {
		s.noteMode = NoteModeReplace
	}
	if s.leadTimes == nil {
		s.leadTimes = DefaultLeadTimes()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// CustomerInput is the customer block of a create request.
type CustomerInput struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name" validate:"required"`
	Email      string    `json:"email" validate:"required,mailbox"`
	Phone      string    `json:"phone" validate:"required"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postal_code"`
	Company    *string   `json:"company,omitempty"`
}

// PaymentChoice is the payment method picked at checkout.
type PaymentChoice struct {
	Method        enums.PaymentMethod `json:"method" validate:"required"`
	TransactionID *string             `json:"transaction_id,omitempty"`
}

// ShippingChoice is the shipping method picked at checkout.
type ShippingChoice struct {
	Method            enums.ShippingMethod `json:"method" validate:"required"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	TrackingNumber    *string              `json:"tracking_number,omitempty"`
	Carrier           *string              `json:"carrier,omitempty"`
}

// CreateInput carries everything needed to place an order.
type CreateInput struct {
	Customer       CustomerInput       `json:"customer"`
	Items          []pricing.LineItem  `json:"items"`
	Payment        PaymentChoice       `json:"payment"`
	Shipping       ShippingChoice      `json:"shipping"`
	Priority       enums.OrderPriority `json:"priority,omitempty"`
	DiscountAmount int64               `json:"discount_amount"`
	Notes          string              `json:"notes"`
	InternalNotes  string              `json:"internal_notes"`
	Tags           []string            `json:"tags"`
	// Source labels where the order came from; defaults to SourceAdmin.
	Source string `json:"-"`
}

// ShippingUpdate holds the shipping fields to merge; nil fields are left alone.
type ShippingUpdate struct {
	Method            *enums.ShippingMethod `json:"method,omitempty"`
	Cost              *int64                `json:"cost,omitempty"`
	EstimatedDelivery *time.Time            `json:"estimated_delivery,omitempty"`
	TrackingNumber    *string               `json:"tracking_number,omitempty"`
	Carrier           *string               `json:"carrier,omitempty"`
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.EmptyCart("order requires at least one line item")
	}
	breakdown := pricing.Compute(input.Items, s.policy, input.DiscountAmount)
	if err := validateCreate(input, breakdown); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	priority := input.Priority
	if priority == "" {
		priority = enums.OrderPriorityMedium
	}
	estimated := input.Shipping.EstimatedDelivery
	if estimated == nil {
		at := s.leadTimes.EstimateDelivery(input.Shipping.Method, now)
		estimated = &at
	}
	customer := Customer{
		ID:         input.Customer.ID,
		Name:       strings.TrimSpace(input.Customer.Name),
		Email:      strings.TrimSpace(input.Customer.Email),
		Phone:      strings.TrimSpace(input.Customer.Phone),
		Address:    input.Customer.Address,
		City:       input.Customer.City,
		Country:    input.Customer.Country,
		PostalCode: input.Customer.PostalCode,
		Company:    clonePtr(input.Customer.Company),
	}
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	if customer.Country == "" {
		customer.Country = s.defaultCountry
	}
	source := input.Source
	if source == "" {
		source = SourceAdmin
	}

	order := &Order{
		ID:       uuid.New(),
		Customer: customer,
		Items:    append([]pricing.LineItem(nil), input.Items...),
		Status:   enums.OrderStatusPending,
		Priority: priority,
		Payment: PaymentInfo{
			Method:        input.Payment.Method,
			Status:        enums.PaymentStatusPending,
			TransactionID: clonePtr(input.Payment.TransactionID),
			Amount:        breakdown.Total,
			Currency:      enums.CurrencyXOF,
		},
		Shipping: ShippingInfo{
			Method:            input.Shipping.Method,
			Cost:              breakdown.ShippingCost,
			EstimatedDelivery: utcPtr(estimated),
			TrackingNumber:    clonePtr(input.Shipping.TrackingNumber),
			Carrier:           clonePtr(input.Shipping.Carrier),
		},
		Notes:             input.Notes,
		InternalNotes:     input.InternalNotes,
		Tags:              normalizeTags(input.Tags),
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: utcPtr(estimated),
	}
	order.ApplyBreakdown(breakdown)
	if err := order.Validate(); err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	number, err := s.numberer.Next(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign order number")
	}
	order.OrderNumber = number

	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	if s.metrics != nil {
		s.metrics.IncOrderCreated(source)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"source":       source,
		"total":        order.TotalAmount,
	})
	s.logg.Info(logCtx, "order.created")
	return order, nil
}

func validateCreate(input CreateInput, breakdown pricing.Breakdown) error {
	fields := map[string]string{}
	mergeFields(fields, validation.Struct(&input))
	itemsErr := pricing.ValidateItems(input.Items)
	mergeFields(fields, itemsErr)
	if itemsErr == nil {
		mergeFields(fields, pricing.ValidateDiscount(input.DiscountAmount, breakdown))
	}

	if input.Payment.Method != "" && !input.Payment.Method.IsValid() {
		fields["payment.method"] = "is invalid"
	}
	if input.Shipping.Method != "" && !input.Shipping.Method.IsValid() {
		fields["shipping.method"] = "is invalid"
	}
	if input.Priority != "" && !input.Priority.IsValid() {
		fields["priority"] = "is invalid"
	}
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.Validation("invalid order", fields)
}

// mergeFields copies the per-field details of a validation error into dst.
// Errors of any other kind are recorded under "_".
func mergeFields(dst map[string]string, err error) {
	if err == nil {
		return
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Fields() == nil {
		dst["_"] = err.Error()
		return
	}
	for k, v := range typed.Fields() {
		dst[k] = v
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Order, error) {
	fields := map[string]string{}
	if filter.Status != "" && !filter.Status.IsValid() {
		fields["status"] = "is invalid"
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		fields["priority"] = "is invalid"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid filter", fields)
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) ByStatus(ctx context.Context, status string) ([]*Order, error) {
	if isWildcard(status) {
		return s.List(ctx, Filter{})
	}
	parsed, err := enums.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, pkgerrors.Validation("invalid filter", map[string]string{"status": "is invalid"})
	}
	return s.List(ctx, Filter{Status: parsed})
}

func (s *service) ByPriority(ctx context.Context, priority string) ([]*Order, error) {
	if isWildcard(priority) {
		return s.List(ctx, Filter{})
	}
	parsed, err := enums.ParseOrderPriority(strings.TrimSpace(priority))
	if err != nil {
		return nil, pkgerrors.Validation("invalid filter", map[string]string{"priority": "is invalid"})
	}
	return s.List(ctx, Filter{Priority: parsed})
}

func (s *service) Search(ctx context.Context, query string) ([]*Order, error) {
	return s.List(ctx, Filter{Query: query})
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Validation("invalid status", map[string]string{"status": "is invalid"})
	}
	var from enums.OrderStatus
	order, err := s.mutate(ctx, id, "update order status", func(o *Order) error {
		if err := s.transitions.Check(o.Status, status); err != nil {
			return err
		}
		from = o.Status
		o.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != status {
		if s.metrics != nil {
			s.metrics.IncStatusChange(string(from), string(status))
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"from":     from,
			"to":       status,
		})
		s.logg.Info(logCtx, "order.status_changed")
	}
	return order, nil
}

func (s *service) SetPriority(ctx context.Context, id uuid.UUID, priority enums.OrderPriority) (*Order, error) {
	if !priority.IsValid() {
		return nil, pkgerrors.Validation("invalid priority", map[string]string{"priority": "is invalid"})
	}
	return s.mutate(ctx, id, "update order priority", func(o *Order) error {
		o.Priority = priority
		return nil
	})
}

// SetPaymentStatus never advances the order status.
func (s *service) SetPaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) (*Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Validation("invalid payment status", map[string]string{"payment_status": "is invalid"})
	}
	return s.mutate(ctx, id, "update payment status", func(o *Order) error {
		o.Payment.Status = status
		return nil
	})
}

// UpdateShipping merges update into the shipping record. Totals are not
// recomputed when the cost changes.
func (s *service) UpdateShipping(ctx context.Context, id uuid.UUID, update ShippingUpdate) (*Order, error) {
	fields := map[string]string{}
	if update.Method != nil && !update.Method.IsValid() {
		fields["method"] = "is invalid"
	}
	if update.Cost != nil && *update.Cost < 0 {
		fields["cost"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid shipping update", fields)
	}
	return s.mutate(ctx, id, "update shipping", func(o *Order) error {
		if update.Method != nil {
			o.Shipping.Method = *update.Method
		}
		if update.Cost != nil {
			o.Shipping.Cost = *update.Cost
		}
		if update.EstimatedDelivery != nil {
			o.Shipping.EstimatedDelivery = utcPtr(update.EstimatedDelivery)
			o.EstimatedDelivery = utcPtr(update.EstimatedDelivery)
		}
		if update.TrackingNumber != nil {
			o.Shipping.TrackingNumber = clonePtr(update.TrackingNumber)
		}
		if update.Carrier != nil {
			o.Shipping.Carrier = clonePtr(update.Carrier)
		}
		return nil
	})
}

func (s *service) AddNote(ctx context.Context, id uuid.UUID, text string, internal bool) (*Order, error) {
	return s.mutate(ctx, id, "update order notes", func(o *Order) error {
		if internal {
			o.InternalNotes = s.noteMode.apply(o.InternalNotes, text)
		} else {
			o.Notes = s.noteMode.apply(o.Notes, text)
		}
		return nil
	})
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, "delete order")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, id.String()), "order.deleted")
	return nil
}

// mutate applies fn through the repository so a failing fn or a broken
// invariant leaves the stored order untouched.
func (s *service) mutate(ctx context.Context, id uuid.UUID, action string, fn func(*Order) error) (*Order, error) {
	order, err := s.repo.Update(ctx, id, func(o *Order) error {
		if err := fn(o); err != nil {
			return err
		}
		o.UpdatedAt = s.now().UTC()
		return o.Validate()
	})
	if err != nil {
		return nil, mapRepoError(err, action)
	}
	return order, nil
}

func mapRepoError(err error, action string) error {
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.NotFound("order not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func isWildcard(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, FilterAll)
}
