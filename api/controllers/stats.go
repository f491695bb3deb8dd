package controllers

import (
	"net/http"

	"github.com/angelmondragon/labstore-backend/api/responses"
	"github.com/angelmondragon/labstore-backend/internal/stats"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
	"github.com/angelmondragon/labstore-backend/pkg/logger"
)

// OrderStats returns the dashboard summary computed from the current orders.
func OrderStats(svc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stats service unavailable"))
			return
		}
		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
