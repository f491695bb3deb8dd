package orders

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
)

var testNow = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type stubMetrics struct {
	created []string
	changes [][2]string
}

func (m *stubMetrics) IncOrderCreated(source string) { m.created = append(m.created, source) }

func (m *stubMetrics) IncStatusChange(from, to string) {
	m.changes = append(m.changes, [2]string{from, to})
}

type serviceFixture struct {
	svc     Service
	repo    Repository
	clock   *fakeClock
	metrics *stubMetrics
}

func newServiceFixture(t *testing.T, opts Options) serviceFixture {
	t.Helper()
	repo := NewMemoryRepository()
	clock := &fakeClock{now: testNow}
	metrics := &stubMetrics{}
	opts.Now = clock.Now
	opts.Metrics = metrics
	if opts.DefaultCountry == "" {
		opts.DefaultCountry = "Sénégal"
	}
	svc, err := NewService(repo, PositionalNumberer{Prefix: "CMD", Orders: repo}, opts)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return serviceFixture{svc: svc, repo: repo, clock: clock, metrics: metrics}
}

func validCreateInput() CreateInput {
	return CreateInput{
		Customer: CustomerInput{
			Name:  "Aminata Diallo",
			Email: "aminata@labo-dakar.sn",
			Phone: "+221770000000",
			City:  "Dakar",
		},
		Items: []pricing.LineItem{
			{ProductID: "pip-100", Name: "Micropipette 100µL", UnitPrice: 1000, Quantity: 3},
		},
		Payment:  PaymentChoice{Method: enums.PaymentMethodMobileMoney},
		Shipping: ShippingChoice{Method: enums.ShippingMethodStandard},
		Tags:     []string{"urgent-lab", " b2b ", "urgent-lab", ""},
	}
}

func mustCreate(t *testing.T, svc Service, input CreateInput) *Order {
	t.Helper()
	order, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected %s error, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected %s, got %s (%v)", code, typed.Code(), err)
	}
	return typed
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, PositionalNumberer{}, Options{}); err == nil {
		t.Fatalf("expected error without repository")
	}
	if _, err := NewService(NewMemoryRepository(), nil, Options{}); err == nil {
		t.Fatalf("expected error without numberer")
	}
}

func TestCreateComputesTotalsAndDefaults(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())

	if order.Subtotal != 3000 || order.TaxAmount != 540 || order.ShippingCost != 15000 || order.TotalAmount != 18540 {
		t.Fatalf("unexpected totals %+v", order.Breakdown())
	}
	if order.OrderNumber != "CMD-2026-001" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.Status != enums.OrderStatusPending || order.Priority != enums.OrderPriorityMedium {
		t.Fatalf("unexpected status/priority %s/%s", order.Status, order.Priority)
	}
	if order.Payment.Amount != 18540 || order.Payment.Currency != enums.CurrencyXOF || order.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("unexpected payment %+v", order.Payment)
	}
	if order.Shipping.Cost != 15000 {
		t.Fatalf("expected shipping record cost 15000 got %d", order.Shipping.Cost)
	}
	wantDelivery := testNow.AddDate(0, 0, 5)
	if order.EstimatedDelivery == nil || !order.EstimatedDelivery.Equal(wantDelivery) {
		t.Fatalf("expected estimated delivery %s got %v", wantDelivery, order.EstimatedDelivery)
	}
	if order.Shipping.EstimatedDelivery == nil || !order.Shipping.EstimatedDelivery.Equal(wantDelivery) {
		t.Fatalf("shipping estimated delivery must mirror the order")
	}
	if order.Customer.ID == uuid.Nil || order.Customer.Country != "Sénégal" {
		t.Fatalf("unexpected customer defaults %+v", order.Customer)
	}
	if !reflect.DeepEqual(order.Tags, []string{"b2b", "urgent-lab"}) {
		t.Fatalf("expected normalized tags, got %v", order.Tags)
	}
	if !order.CreatedAt.Equal(testNow) || !order.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected timestamps from the clock")
	}
	if len(f.metrics.created) != 1 || f.metrics.created[0] != SourceAdmin {
		t.Fatalf("expected admin creation metric, got %v", f.metrics.created)
	}
}

func TestCreateNumbersByPosition(t *testing.T) {
	f := newServiceFixture(t, Options{})
	first := mustCreate(t, f.svc, validCreateInput())
	second := mustCreate(t, f.svc, validCreateInput())
	if first.OrderNumber != "CMD-2026-001" || second.OrderNumber != "CMD-2026-002" {
		t.Fatalf("unexpected numbers %s %s", first.OrderNumber, second.OrderNumber)
	}
}

func TestCreateRejectsEmptyItems(t *testing.T) {
	f := newServiceFixture(t, Options{})
	input := validCreateInput()
	input.Items = nil
	_, err := f.svc.Create(context.Background(), input)
	requireCode(t, err, pkgerrors.CodeEmptyCart)
	if count, _ := f.repo.Count(context.Background()); count != 0 {
		t.Fatalf("no order must be stored, got %d", count)
	}
}

func TestCreateReportsEveryInvalidField(t *testing.T) {
	f := newServiceFixture(t, Options{})
	input := validCreateInput()
	input.Customer.Email = ""
	input.Customer.Phone = ""
	input.Shipping.Method = "drone"
	input.Items[0].Quantity = 0

	_, err := f.svc.Create(context.Background(), input)
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	for _, field := range []string{"customer.email", "customer.phone", "shipping.method", "items[0].quantity"} {
		if _, ok := typed.Fields()[field]; !ok {
			t.Fatalf("expected %s in %v", field, typed.Fields())
		}
	}
}

func TestCreateRejectsOverflowingAmounts(t *testing.T) {
	f := newServiceFixture(t, Options{})

	input := validCreateInput()
	input.Items = []pricing.LineItem{{ProductID: "x", Name: "x", UnitPrice: 1 << 61, Quantity: 8}}
	_, err := f.svc.Create(context.Background(), input)
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	if _, ok := typed.Fields()["items[0].quantity"]; !ok {
		t.Fatalf("expected items[0].quantity, got %v", typed.Fields())
	}

	big := pricing.MaxSubtotal/2 + 1
	input.Items = []pricing.LineItem{
		{ProductID: "x", Name: "x", UnitPrice: big, Quantity: 1},
		{ProductID: "y", Name: "y", UnitPrice: big, Quantity: 1},
	}
	_, err = f.svc.Create(context.Background(), input)
	typed = requireCode(t, err, pkgerrors.CodeValidation)
	if _, ok := typed.Fields()["items"]; !ok {
		t.Fatalf("expected items field, got %v", typed.Fields())
	}
	if _, ok := typed.Fields()["discount_amount"]; ok {
		t.Fatalf("discount is not checked against an invalid cart: %v", typed.Fields())
	}

	count, err := f.repo.Count(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("expected no stored orders, got %d (%v)", count, err)
	}
}

func TestCreateRejectsOversizedDiscount(t *testing.T) {
	f := newServiceFixture(t, Options{})
	input := validCreateInput()
	input.DiscountAmount = 18541
	_, err := f.svc.Create(context.Background(), input)
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	if _, ok := typed.Fields()["discount_amount"]; !ok {
		t.Fatalf("expected discount_amount field, got %v", typed.Fields())
	}

	input.DiscountAmount = 540
	order := mustCreate(t, f.svc, input)
	if order.TotalAmount != 18000 || !order.Breakdown().Consistent() {
		t.Fatalf("unexpected discounted order %+v", order.Breakdown())
	}
}

func TestCreateWrapsNumberingFailure(t *testing.T) {
	repo := NewMemoryRepository()
	svc, err := NewService(repo, numbererFunc(func(context.Context, time.Time) (string, error) {
		return "", errors.New("redis down")
	}), Options{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.Create(context.Background(), validCreateInput())
	requireCode(t, err, pkgerrors.CodeDependency)
}

func TestCreateWrapsStoreFailure(t *testing.T) {
	repo := &failingRepo{Repository: NewMemoryRepository(), createErr: errors.New("disk full")}
	svc, err := NewService(repo, PositionalNumberer{Prefix: "CMD", Orders: repo}, Options{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.Create(context.Background(), validCreateInput())
	requireCode(t, err, pkgerrors.CodeDependency)
}

func TestByStatusAfterCreate(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	ctx := context.Background()

	pending, err := f.svc.ByStatus(ctx, "pending")
	if err != nil {
		t.Fatalf("by status: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != order.ID {
		t.Fatalf("expected the new order in pending, got %v", pending)
	}
	shipped, err := f.svc.ByStatus(ctx, "shipped")
	if err != nil {
		t.Fatalf("by status: %v", err)
	}
	if len(shipped) != 0 {
		t.Fatalf("expected no shipped orders, got %d", len(shipped))
	}
}

func TestByStatusAllIsIdempotent(t *testing.T) {
	f := newServiceFixture(t, Options{})
	mustCreate(t, f.svc, validCreateInput())
	f.clock.Advance(time.Minute)
	mustCreate(t, f.svc, validCreateInput())

	first, err := f.svc.ByStatus(context.Background(), FilterAll)
	if err != nil {
		t.Fatalf("by status all: %v", err)
	}
	second, _ := f.svc.ByStatus(context.Background(), FilterAll)
	if len(first) != 2 || !reflect.DeepEqual(first, second) {
		t.Fatalf("expected equal listings, got %v and %v", first, second)
	}
	if first[0].OrderNumber != "CMD-2026-002" {
		t.Fatalf("expected newest first, got %s", first[0].OrderNumber)
	}
}

func TestByStatusAndPriorityRejectUnknownValues(t *testing.T) {
	f := newServiceFixture(t, Options{})
	_, err := f.svc.ByStatus(context.Background(), "lost")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.ByPriority(context.Background(), "critical")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestByPriority(t *testing.T) {
	f := newServiceFixture(t, Options{})
	input := validCreateInput()
	input.Priority = enums.OrderPriorityUrgent
	urgent := mustCreate(t, f.svc, input)
	mustCreate(t, f.svc, validCreateInput())

	list, err := f.svc.ByPriority(context.Background(), "urgent")
	if err != nil {
		t.Fatalf("by priority: %v", err)
	}
	if len(list) != 1 || list[0].ID != urgent.ID {
		t.Fatalf("expected only the urgent order, got %v", list)
	}
	all, _ := f.svc.ByPriority(context.Background(), "ALL")
	if len(all) != 2 {
		t.Fatalf("expected wildcard to list both orders, got %d", len(all))
	}
}

func TestSearchMatchesAcrossFields(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	other := validCreateInput()
	other.Customer.Name = "Moussa Ndiaye"
	other.Customer.Email = "moussa@univ.sn"
	other.Items = []pricing.LineItem{{ProductID: "cen-1", Name: "Centrifugeuse", UnitPrice: 500000, Quantity: 1}}
	mustCreate(t, f.svc, other)

	for _, query := range []string{"cmd-2026-001", "AMINATA", "labo-dakar", "micropipette"} {
		list, err := f.svc.Search(context.Background(), query)
		if err != nil {
			t.Fatalf("search %q: %v", query, err)
		}
		if len(list) != 1 || list[0].ID != order.ID {
			t.Fatalf("search %q: expected one match, got %d", query, len(list))
		}
	}
	if list, _ := f.svc.Search(context.Background(), "introuvable"); len(list) != 0 {
		t.Fatalf("expected no match, got %d", len(list))
	}
}

func TestAddNoteReplacesByDefault(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	ctx := context.Background()

	if _, err := f.svc.AddNote(ctx, order.ID, "a", true); err != nil {
		t.Fatalf("add note: %v", err)
	}
	updated, err := f.svc.AddNote(ctx, order.ID, "b", true)
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if updated.InternalNotes != "b" {
		t.Fatalf("expected internal notes %q got %q", "b", updated.InternalNotes)
	}
	if updated.Notes != "" {
		t.Fatalf("customer notes must be untouched, got %q", updated.Notes)
	}
}

func TestAddNoteAppendMode(t *testing.T) {
	f := newServiceFixture(t, Options{NoteMode: NoteModeAppend})
	order := mustCreate(t, f.svc, validCreateInput())
	ctx := context.Background()

	_, _ = f.svc.AddNote(ctx, order.ID, "appel client", false)
	updated, err := f.svc.AddNote(ctx, order.ID, "rappel demain", false)
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if updated.Notes != "appel client\nrappel demain" {
		t.Fatalf("unexpected appended notes %q", updated.Notes)
	}
}

func TestSetStatusPermissiveAllowsAnyTransition(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	ctx := context.Background()

	if _, err := f.svc.SetStatus(ctx, order.ID, enums.OrderStatusDelivered); err != nil {
		t.Fatalf("set delivered: %v", err)
	}
	f.clock.Advance(time.Hour)
	reopened, err := f.svc.SetStatus(ctx, order.ID, enums.OrderStatusPending)
	if err != nil {
		t.Fatalf("permissive policy must allow reopen: %v", err)
	}
	if reopened.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", reopened.Status)
	}
	if !reopened.UpdatedAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("expected updatedAt to be touched, got %s", reopened.UpdatedAt)
	}
	if len(f.metrics.changes) != 2 || f.metrics.changes[1] != [2]string{"delivered", "pending"} {
		t.Fatalf("unexpected status change metrics %v", f.metrics.changes)
	}
}

func TestSetStatusStrictKeepsTerminalOrdersClosed(t *testing.T) {
	f := newServiceFixture(t, Options{Transitions: StrictPolicy{}})
	order := mustCreate(t, f.svc, validCreateInput())
	ctx := context.Background()

	if _, err := f.svc.SetStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.svc.SetStatus(ctx, order.ID, enums.OrderStatusProcessing)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	stored, _ := f.svc.Get(ctx, order.ID)
	if stored.Status != enums.OrderStatusCancelled {
		t.Fatalf("rejected transition must leave the order unchanged, got %s", stored.Status)
	}
	if _, err := f.svc.SetStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("re-setting the same terminal status is allowed: %v", err)
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	_, err := f.svc.SetStatus(context.Background(), order.ID, "lost")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSetPaymentStatusDoesNotAdvanceOrder(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	updated, err := f.svc.SetPaymentStatus(context.Background(), order.ID, enums.PaymentStatusPaid)
	if err != nil {
		t.Fatalf("set payment status: %v", err)
	}
	if updated.Payment.Status != enums.PaymentStatusPaid || updated.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected payment/order status %s/%s", updated.Payment.Status, updated.Status)
	}
}

func TestSetPriority(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	updated, err := f.svc.SetPriority(context.Background(), order.ID, enums.OrderPriorityHigh)
	if err != nil {
		t.Fatalf("set priority: %v", err)
	}
	if updated.Priority != enums.OrderPriorityHigh {
		t.Fatalf("unexpected priority %s", updated.Priority)
	}
	_, err = f.svc.SetPriority(context.Background(), order.ID, "meh")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateShippingMergesWithoutRepricing(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())

	express := enums.ShippingMethodExpress
	cost := int64(25000)
	tracking := "DHL-123"
	delivery := testNow.AddDate(0, 0, 2)
	updated, err := f.svc.UpdateShipping(context.Background(), order.ID, ShippingUpdate{
		Method:            &express,
		Cost:              &cost,
		TrackingNumber:    &tracking,
		EstimatedDelivery: &delivery,
	})
	if err != nil {
		t.Fatalf("update shipping: %v", err)
	}
	if updated.Shipping.Method != express || updated.Shipping.Cost != cost || *updated.Shipping.TrackingNumber != tracking {
		t.Fatalf("unexpected shipping %+v", updated.Shipping)
	}
	if updated.Shipping.Carrier != nil {
		t.Fatalf("unset fields must be kept, got carrier %v", *updated.Shipping.Carrier)
	}
	if updated.ShippingCost != 15000 || updated.TotalAmount != 18540 {
		t.Fatalf("totals must not be recomputed, got %+v", updated.Breakdown())
	}
	if !updated.EstimatedDelivery.Equal(delivery) {
		t.Fatalf("order estimated delivery must follow shipping, got %v", updated.EstimatedDelivery)
	}

	negative := int64(-1)
	_, err = f.svc.UpdateShipping(context.Background(), order.ID, ShippingUpdate{Cost: &negative})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestMutatorsReportNotFound(t *testing.T) {
	f := newServiceFixture(t, Options{})
	ctx := context.Background()
	missing := uuid.New()
	high := enums.OrderPriorityHigh

	calls := map[string]func() error{
		"get": func() error { _, err := f.svc.Get(ctx, missing); return err },
		"status": func() error {
			_, err := f.svc.SetStatus(ctx, missing, enums.OrderStatusShipped)
			return err
		},
		"priority": func() error { _, err := f.svc.SetPriority(ctx, missing, high); return err },
		"payment": func() error {
			_, err := f.svc.SetPaymentStatus(ctx, missing, enums.PaymentStatusPaid)
			return err
		},
		"shipping": func() error { _, err := f.svc.UpdateShipping(ctx, missing, ShippingUpdate{}); return err },
		"note":     func() error { _, err := f.svc.AddNote(ctx, missing, "x", false); return err },
		"delete":   func() error { return f.svc.Delete(ctx, missing) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			requireCode(t, call(), pkgerrors.CodeNotFound)
		})
	}
}

func TestDeleteRemovesOrder(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	if err := f.svc.Delete(context.Background(), order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := f.svc.Get(context.Background(), order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestTotalInvariantHoldsAcrossMutators(t *testing.T) {
	f := newServiceFixture(t, Options{})
	ctx := context.Background()
	input := validCreateInput()
	input.DiscountAmount = 1000
	order := mustCreate(t, f.svc, input)

	steps := []func() (*Order, error){
		func() (*Order, error) { return f.svc.SetStatus(ctx, order.ID, enums.OrderStatusConfirmed) },
		func() (*Order, error) { return f.svc.SetPriority(ctx, order.ID, enums.OrderPriorityLow) },
		func() (*Order, error) { return f.svc.SetPaymentStatus(ctx, order.ID, enums.PaymentStatusPaid) },
		func() (*Order, error) { return f.svc.AddNote(ctx, order.ID, "ok", false) },
		func() (*Order, error) {
			method := enums.ShippingMethodPickup
			return f.svc.UpdateShipping(ctx, order.ID, ShippingUpdate{Method: &method})
		},
	}
	for i, step := range steps {
		updated, err := step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if updated.TotalAmount != updated.Subtotal+updated.TaxAmount+updated.ShippingCost-updated.DiscountAmount {
			t.Fatalf("step %d broke the total invariant: %+v", i, updated.Breakdown())
		}
	}
}

func TestFailedMutationLeavesOrderUnchanged(t *testing.T) {
	f := newServiceFixture(t, Options{})
	order := mustCreate(t, f.svc, validCreateInput())
	ctx := context.Background()

	_, err := f.repo.Update(ctx, order.ID, func(o *Order) error {
		o.Notes = "half-written"
		o.TotalAmount = 1
		return o.Validate()
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	stored, _ := f.svc.Get(ctx, order.ID)
	if stored.Notes != "" || stored.TotalAmount != 18540 {
		t.Fatalf("failed update must not persist partial changes, got %+v", stored)
	}
}

type numbererFunc func(ctx context.Context, at time.Time) (string, error)

func (f numbererFunc) Next(ctx context.Context, at time.Time) (string, error) { return f(ctx, at) }

type failingRepo struct {
	Repository
	createErr error
}

func (r *failingRepo) Create(ctx context.Context, order *Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.Repository.Create(ctx, order)
}
