package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tourbook-backend/api/controllers"
	"github.com/angelmondragon/tourbook-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/tourbook-backend/internal/checkout"
	"github.com/angelmondragon/tourbook-backend/internal/storefront"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

// RedisStore is the subset of the redis client the HTTP layer depends on.
type RedisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient RedisStore,
	gatherer prometheus.Gatherer,
	storefrontService storefront.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	sessionPolicy := middleware.NewSessionRateLimitPolicy(cfg.SessionLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "db", Pinger: dbP},
			controllers.Dependency{Name: "redis", Pinger: redisClient},
		))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(sessionPolicy, redisClient, logg)).Post("/sessions", controllers.SessionStart(storefrontService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(cfg.Session, logg))

			r.Route("/tours/{tourId}", func(r chi.Router) {
				r.Get("/dates", controllers.TourDates(storefrontService, logg))
				r.Route("/selection", func(r chi.Router) {
					r.Get("/", controllers.SelectionFetch(storefrontService, logg))
					r.Delete("/", controllers.SelectionClear(storefrontService, logg))
					r.Put("/date", controllers.SelectionDate(storefrontService, logg))
					r.Post("/quantities", controllers.SelectionQuantity(storefrontService, logg))
					r.Post("/package", controllers.SelectionPackage(storefrontService, logg))
					r.Post("/commit", controllers.SelectionCommit(storefrontService, logg))
				})
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(storefrontService, logg))
				r.Put("/selection", controllers.CartToggleAll(storefrontService, logg))
				r.Put("/payment-target", controllers.CartSelectPaymentTarget(storefrontService, logg))
				r.Delete("/payment-target", controllers.CartClearPaymentTarget(storefrontService, logg))
				r.Route("/lines", func(r chi.Router) {
					r.Post("/remove-selected", controllers.CartRemoveSelected(storefrontService, logg))
					r.Delete("/{scheduleId}", controllers.CartRemoveLine(storefrontService, logg))
					r.Put("/{scheduleId}/selected", controllers.CartToggleLine(storefrontService, logg))
					r.Post("/{scheduleId}/tickets/{ticketTypeId}/quantity", controllers.CartTicketQuantity(storefrontService, logg))
				})
			})

			r.With(middleware.Idempotent(redisClient, logg, middleware.CheckoutIdempotencyTTL)).
				Post("/checkout", controllers.Checkout(checkoutService, logg))
			r.Get("/checkout/receipts", controllers.CheckoutReceipts(checkoutService, logg))
		})
	})

	return r
}
