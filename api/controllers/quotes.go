package controllers

import (
	"net/http"

	"github.com/angelmondragon/labstore-backend/api/responses"
	"github.com/angelmondragon/labstore-backend/api/validators"
	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/internal/quotes"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
	"github.com/angelmondragon/labstore-backend/pkg/logger"
)

const maxQuoteMessageLength = 2000

// QuoteCreate handles the storefront quote form. The builder reports every
// invalid contact field, so the body is only decoded here.
func QuoteCreate(builder quotes.Builder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if builder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote builder unavailable"))
			return
		}

		var req quotes.Request
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.Message = validators.SanitizeString(req.Message, maxQuoteMessageLength)

		issued, err := builder.Build(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issued)
	}
}

type previewRequest struct {
	Items []pricing.LineItem `json:"items"`
}

type previewResponse struct {
	pricing.Breakdown
	FreeShippingGap int64 `json:"free_shipping_gap"`
}

// PricingPreview prices a cart without recording anything. An empty cart is
// priced as zero.
func PricingPreview(policy pricing.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req previewRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := pricing.ValidateItems(req.Items); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		breakdown := pricing.Compute(req.Items, policy, 0)
		responses.WriteSuccess(w, previewResponse{
			Breakdown:       breakdown,
			FreeShippingGap: pricing.FreeShippingGap(breakdown.Subtotal, policy),
		})
	}
}
