package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glowhaus/storefront-backend/api/controllers"
	"github.com/glowhaus/storefront-backend/api/middleware"
	"github.com/glowhaus/storefront-backend/internal/address"
	"github.com/glowhaus/storefront-backend/internal/auth"
	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/orders"
	"github.com/glowhaus/storefront-backend/pkg/auth/session"
	"github.com/glowhaus/storefront-backend/pkg/config"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/redis"
	"github.com/glowhaus/storefront-backend/pkg/telemetry"
)

// rateLimitStore backs both the auth throttles and the idempotency records.
type rateLimitStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies are the services the HTTP surface dispatches to. Readiness
// pings every non-nil entry of Probes.
type Dependencies struct {
	Probes    map[string]controllers.Pinger
	Redis     rateLimitStore
	Sessions  session.AccessSessionChecker
	Catalog   controllers.ProductCatalog
	Carts     cart.Service
	Checkout  controllers.DraftManager
	Orders    orders.Service
	Assistant controllers.Dialogue
	Auth      auth.Service
	Addresses address.Service
	Outbox    controllers.DeadLetters
	// Metrics serves /metrics; nil leaves the route unmounted.
	Metrics http.Handler
}

const adminIdempotencyTTL = 24 * time.Hour

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		telemetry.Middleware("storefront-api"),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Probes))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	var limiter rateLimitStore
	var idem redis.IdempotencyStore
	if deps.Redis != nil {
		limiter = deps.Redis
		idem = deps.Redis
	}
	submitOnce := middleware.Idempotency(idem, cfg.Checkout.IdempotencyTTL, logg)
	adminOnce := middleware.Idempotency(idem, adminIdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.GuestSession(cfg.Session.CookieSecure, logg),
			middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg),
		)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Get("/{productID}", controllers.ProductGet(deps.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Carts, logg))
			r.Post("/items", controllers.CartAdd(deps.Carts, logg))
			r.Delete("/items/{productID}", controllers.CartRemove(deps.Carts, logg))
			r.Patch("/items/{productID}/quantity", controllers.CartUpdateQuantity(deps.Carts, logg))
			r.Patch("/items/{productID}/variant", controllers.CartUpdateVariant(deps.Carts, logg))
		})
		r.Get("/shipping/quote", controllers.ShippingQuote(deps.Carts, logg))
		r.Get("/locations", controllers.LocationOptions(deps.Checkout, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/draft", controllers.CheckoutDraftFetch(deps.Checkout, deps.Auth, logg))
			r.Patch("/draft", controllers.CheckoutDraftUpdate(deps.Checkout, logg))
			r.Get("/quote", controllers.CheckoutQuote(deps.Checkout, logg))
			r.Post("/review", controllers.CheckoutReview(deps.Orders, logg))
			r.With(submitOnce).Post("/submit", controllers.CheckoutSubmit(deps.Orders, logg))
			r.Get("/confirmation/{orderNumber}", controllers.CheckoutConfirmation(deps.Orders, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/track/{ref}", controllers.OrderTrack(deps.Orders, logg))
			r.With(middleware.RequireUser(logg)).Get("/", controllers.OrderHistory(deps.Orders, logg))
		})

		r.Post("/assistant/turn", controllers.AssistantTurn(deps.Assistant, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.Get("/session", controllers.AuthSession(deps.Auth, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Get("/", controllers.AddressList(deps.Addresses, logg))
			r.Post("/", controllers.AddressCreate(deps.Addresses, logg))
			r.Patch("/{addressID}", controllers.AddressUpdate(deps.Addresses, logg))
			r.Delete("/{addressID}", controllers.AddressDelete(deps.Addresses, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminKey(cfg.Admin.APIKey, logg))
			r.With(adminOnce).Post("/orders/{orderID}/status", controllers.AdminOrderStatus(deps.Orders, logg))
			r.Get("/outbox/dlq", controllers.AdminDLQList(deps.Outbox, logg))
			r.Post("/outbox/dlq/{eventID}/replay", controllers.AdminDLQReplay(deps.Outbox, logg))
		})
	})

	return r
}
