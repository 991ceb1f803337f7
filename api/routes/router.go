package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/actioncore/blink-backend/api/controllers"
	"github.com/actioncore/blink-backend/api/middleware"
	"github.com/actioncore/blink-backend/internal/analytics"
	"github.com/actioncore/blink-backend/internal/blinks"
	"github.com/actioncore/blink-backend/internal/merchants"
	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/internal/reconcile"
	"github.com/actioncore/blink-backend/pkg/config"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/redis"
)

// Pinger is the health check surface shared by the router's dependencies.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        Pinger
	Redis     *redis.Client
	PubSub    Pinger
	Merchants merchants.Service
	Blinks    *blinks.Service
	Orders    orders.Service
	Reconcile *reconcile.Service
	Analytics *analytics.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	ipLimit := middleware.IPRateLimit(deps.Redis, cfg.RateLimit.IPLimit, cfg.RateLimit.WalletWindow, logg)

	// Wallet-facing routes: open CORS per the Actions spec.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ActionCORS())

		r.Get("/actions.json", controllers.ActionsJSON())

		r.Route("/api/actions/{slug}", func(r chi.Router) {
			r.Get("/", controllers.ActionMetadata(deps.Blinks, logg))
			r.With(ipLimit).Post("/", controllers.ActionTransaction(deps.Blinks, logg))
		})

		r.With(ipLimit).Get("/api/orders/{memo}", controllers.OrderStatus(deps.Orders, logg))
		r.With(ipLimit).Post("/api/webhooks/solana", controllers.PaymentConfirm(deps.Reconcile, logg))
	})

	// Merchant dashboard routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.DashboardCORS(cfg.App.CORSOrigins))

		r.With(ipLimit).Post("/api/v1/merchants/register", controllers.MerchantRegister(deps.Merchants, logg))

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(deps.Merchants, logg))

			r.Get("/merchants/me", controllers.MerchantMe(deps.Merchants, logg))
			r.Put("/merchants/payout", controllers.MerchantSetPayout(deps.Merchants, logg))
			r.Get("/merchants/stats", controllers.MerchantStats(deps.Analytics, logg))

			r.Route("/blinks", func(r chi.Router) {
				r.Post("/", controllers.BlinkCreate(deps.Blinks, logg))
				r.Get("/", controllers.BlinkList(deps.Blinks, logg))
				r.Patch("/{blinkId}", controllers.BlinkUpdate(deps.Blinks, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			})
		})
	})

	return r
}

func readinessDeps(deps Deps) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{
		"db": deps.DB,
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	if deps.PubSub != nil {
		checks["pubsub"] = deps.PubSub
	}
	return checks
}
