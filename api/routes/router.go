package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesafast/mesafast-backend/api/controllers"
	ordercontrollers "github.com/mesafast/mesafast-backend/api/controllers/orders"
	"github.com/mesafast/mesafast-backend/api/middleware"
	"github.com/mesafast/mesafast-backend/internal/orders"
	"github.com/mesafast/mesafast-backend/pkg/config"
	"github.com/mesafast/mesafast-backend/pkg/db"
	"github.com/mesafast/mesafast-backend/pkg/enums"
	"github.com/mesafast/mesafast-backend/pkg/logger"
	"github.com/mesafast/mesafast-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// A typed nil would defeat the middleware's own nil check.
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(string(enums.ActorRoleCustomer), logg)).
				Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.With(middleware.RequireRole(string(enums.ActorRoleCustomer), logg)).
				Get("/mine", ordercontrollers.ListMine(ordersSvc, logg))
			r.With(middleware.RequireRole(string(enums.ActorRoleMerchant), logg)).
				Get("/incoming", ordercontrollers.ListMerchant(ordersSvc, logg))
			r.With(middleware.RequireRole(string(enums.ActorRoleCourier), logg)).
				Get("/available", ordercontrollers.ListAvailable(ordersSvc, logg))
			r.With(middleware.RequireRole(string(enums.ActorRoleCourier), logg)).
				Get("/assigned", ordercontrollers.ListAssigned(ordersSvc, logg))

			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))

			r.With(middleware.RequireAnyRole(logg,
				string(enums.ActorRoleMerchant),
				string(enums.ActorRoleCourier),
				string(enums.ActorRoleAdmin),
			)).Patch("/{orderId}/status", ordercontrollers.UpdateStatus(ordersSvc, logg))

			r.With(middleware.RequireAnyRole(logg,
				string(enums.ActorRoleCustomer),
				string(enums.ActorRoleMerchant),
				string(enums.ActorRoleAdmin),
			)).Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))

			r.With(middleware.RequireRole(string(enums.ActorRoleCourier), logg)).
				Post("/{orderId}/assign", ordercontrollers.Assign(ordersSvc, logg))
			r.With(middleware.RequireRole(string(enums.ActorRoleCustomer), logg)).
				Post("/{orderId}/review", ordercontrollers.Review(ordersSvc, logg))
		})
	})

	return r
}
