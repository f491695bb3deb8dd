// Package orders exposes the admin order management endpoints.
package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/api/responses"
	"github.com/angelmondragon/labstore-backend/api/validators"
	internalorders "github.com/angelmondragon/labstore-backend/internal/orders"
	"github.com/angelmondragon/labstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
	"github.com/angelmondragon/labstore-backend/pkg/logger"
)

const (
	maxNoteLength  = 4000
	maxQueryLength = 200
)

type listResponse struct {
	Orders []*internalorders.Order `json:"orders"`
	Count  int                     `json:"count"`
}

// List returns orders newest first, narrowed by the status, priority and q
// query parameters. "all" or an empty value disables a filter.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		filter, err := buildFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []*internalorders.Order{}
		}
		responses.WriteSuccess(w, listResponse{Orders: list, Count: len(list)})
	}
}

// Create records an order entered from the admin UI.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var input internalorders.CreateInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Source = internalorders.SourceAdmin

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Delete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus moves the order to another lifecycle status. Whether terminal
// orders may be reopened depends on the configured transition policy.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return mutation(svc, logg, func(r *http.Request, orderID uuid.UUID) (*internalorders.Order, error) {
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.SetStatus(r.Context(), orderID, enums.OrderStatus(normalize(req.Status)))
	})
}

type priorityRequest struct {
	Priority string `json:"priority" validate:"required"`
}

func UpdatePriority(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return mutation(svc, logg, func(r *http.Request, orderID uuid.UUID) (*internalorders.Order, error) {
		var req priorityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.SetPriority(r.Context(), orderID, enums.OrderPriority(normalize(req.Priority)))
	})
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required"`
}

// UpdatePaymentStatus records a payment outcome. The order status is left alone.
func UpdatePaymentStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return mutation(svc, logg, func(r *http.Request, orderID uuid.UUID) (*internalorders.Order, error) {
		var req paymentStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.SetPaymentStatus(r.Context(), orderID, enums.PaymentStatus(normalize(req.PaymentStatus)))
	})
}

func UpdateShipping(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return mutation(svc, logg, func(r *http.Request, orderID uuid.UUID) (*internalorders.Order, error) {
		var update internalorders.ShippingUpdate
		if err := validators.DecodeJSON(r, &update); err != nil {
			return nil, err
		}
		return svc.UpdateShipping(r.Context(), orderID, update)
	})
}

type noteRequest struct {
	Note     string `json:"note"`
	Internal bool   `json:"internal"`
}

// AddNote writes the customer-facing or internal note of an order.
func AddNote(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return mutation(svc, logg, func(r *http.Request, orderID uuid.UUID) (*internalorders.Order, error) {
		var req noteRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			return nil, err
		}
		return svc.AddNote(r.Context(), orderID, validators.SanitizeString(req.Note, maxNoteLength), req.Internal)
	})
}

func mutation(svc internalorders.Service, logg *logger.Logger, apply func(*http.Request, uuid.UUID) (*internalorders.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := apply(r, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func buildFilter(r *http.Request) (internalorders.Filter, error) {
	query := r.URL.Query()
	filter := internalorders.Filter{
		Query: validators.SanitizeString(query.Get("q"), maxQueryLength),
	}
	fields := map[string]string{}

	if raw := normalize(query.Get("status")); raw != "" && raw != internalorders.FilterAll {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			fields["status"] = "is invalid"
		}
		filter.Status = status
	}
	if raw := normalize(query.Get("priority")); raw != "" && raw != internalorders.FilterAll {
		priority, err := enums.ParseOrderPriority(raw)
		if err != nil {
			fields["priority"] = "is invalid"
		}
		filter.Priority = priority
	}
	if len(fields) > 0 {
		return internalorders.Filter{}, pkgerrors.Validation("invalid filter", fields)
	}
	return filter, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	rawOrderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if rawOrderID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
