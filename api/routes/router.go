package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/labstore-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/labstore-backend/api/controllers/orders"
	"github.com/angelmondragon/labstore-backend/api/middleware"
	"github.com/angelmondragon/labstore-backend/internal/orders"
	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/internal/quotes"
	"github.com/angelmondragon/labstore-backend/internal/stats"
	"github.com/angelmondragon/labstore-backend/pkg/config"
	"github.com/angelmondragon/labstore-backend/pkg/logger"
	"github.com/angelmondragon/labstore-backend/pkg/redis"
)

// Dependencies are the services served by the HTTP surface. Idempotency,
// Readiness entries and Gatherer are optional.
type Dependencies struct {
	Orders      orders.Service
	Quotes      quotes.Builder
	Stats       stats.Service
	Policy      pricing.Policy
	Idempotency redis.IdempotencyStore
	Readiness   map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/quotes", controllers.QuoteCreate(deps.Quotes, logg))
			r.Post("/pricing/preview", controllers.PricingPreview(deps.Policy, logg))
		})

		r.Route("/admin/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/stats", controllers.OrderStats(deps.Stats, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
				r.Delete("/", ordercontrollers.Delete(deps.Orders, logg))
				r.Patch("/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
				r.Patch("/priority", ordercontrollers.UpdatePriority(deps.Orders, logg))
				r.Patch("/payment-status", ordercontrollers.UpdatePaymentStatus(deps.Orders, logg))
				r.Patch("/shipping", ordercontrollers.UpdateShipping(deps.Orders, logg))
				r.Post("/notes", ordercontrollers.AddNote(deps.Orders, logg))
			})
		})
	})

	return r
}
