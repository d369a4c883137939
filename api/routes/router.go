package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wheeldeal/wheeldeal-backend/api/controllers"
	webhookcontrollers "github.com/wheeldeal/wheeldeal-backend/api/controllers/webhooks"
	"github.com/wheeldeal/wheeldeal-backend/api/middleware"
	"github.com/wheeldeal/wheeldeal-backend/internal/payments"
	stripewebhook "github.com/wheeldeal/wheeldeal-backend/internal/webhooks/stripe"
	"github.com/wheeldeal/wheeldeal-backend/pkg/config"
	"github.com/wheeldeal/wheeldeal-backend/pkg/db"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	"github.com/wheeldeal/wheeldeal-backend/pkg/logger"
	"github.com/wheeldeal/wheeldeal-backend/pkg/redis"
	"github.com/wheeldeal/wheeldeal-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config              *config.Config
	Logger              *logger.Logger
	DB                  db.Pinger
	Redis               *redis.Client
	Payments            payments.Service
	StripeClient        *stripe.Client
	StripeWebhooks      *stripewebhook.Service
	StripeWebhookGuard  *stripewebhook.IdempotencyGuard
	MetricsRegistry     *prometheus.Registry
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// A nil *redis.Client stored in an interface is not a nil interface, so
	// the assignments below stay behind explicit nil checks.
	var cachePinger redis.Pinger
	var idempotencyStore redis.IdempotencyStore
	if params.Redis != nil {
		cachePinger = params.Redis
		idempotencyStore = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.DB, cachePinger, logg))
	})

	if params.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	// Stripe authenticates with its signature header, not a bearer token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(params.StripeWebhooks, params.StripeClient, params.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(params.Payments, logg))
			r.Post("/checkout", controllers.CreateCheckout(params.Payments, logg))

			r.Route("/{transactionId}", func(r chi.Router) {
				r.Get("/", controllers.GetTransaction(params.Payments, logg))
				r.Post("/verify-manual", controllers.VerifyManual(params.Payments, logg))
				r.Post("/confirm-booking", controllers.ConfirmBooking(params.Payments, logg))
				r.Post("/verify", controllers.PollVerify(params.Payments, logg))
				r.Post("/failure", controllers.RecordClientFailure(params.Payments, logg))
				r.Patch("/delivery", controllers.UpdateDelivery(params.Payments, logg))
				r.Post("/collect", controllers.ConfirmCollection(params.Payments, logg))
			})
		})

		r.Route("/admin/payments", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/{transactionId}/finalize", controllers.FinalizeTransaction(params.Payments, logg))
			r.Post("/{transactionId}/refund", controllers.RefundTransaction(params.Payments, logg))
		})
	})

	return r
}
