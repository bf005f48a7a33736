package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwangikariuki/shopkit-backend/api/controllers"
	"github.com/mwangikariuki/shopkit-backend/api/middleware"
	"github.com/mwangikariuki/shopkit-backend/internal/auth"
	"github.com/mwangikariuki/shopkit-backend/internal/cart"
	"github.com/mwangikariuki/shopkit-backend/internal/categories"
	checkoutsvc "github.com/mwangikariuki/shopkit-backend/internal/checkout"
	"github.com/mwangikariuki/shopkit-backend/internal/orders"
	"github.com/mwangikariuki/shopkit-backend/internal/products"
	"github.com/mwangikariuki/shopkit-backend/internal/users"
	"github.com/mwangikariuki/shopkit-backend/pkg/auth/session"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
	"github.com/mwangikariuki/shopkit-backend/pkg/metrics"
	"github.com/mwangikariuki/shopkit-backend/pkg/redis"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Auth       auth.Service
	Register   auth.RegisterService
	Users      users.Service
	Categories categories.Service
	Products   products.Service
	Cart       cart.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	sessions session.AccessSessionChecker,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	// A nil redis client would otherwise hide behind a non-nil interface
	// inside the middleware, so the optional layers are wired here.
	passthrough := func(next http.Handler) http.Handler { return next }
	idempotencyMW := passthrough
	if redisClient != nil {
		idempotencyMW = middleware.Idempotency(redisClient, logg)
	}
	rateLimitMW := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if redisClient == nil {
			return passthrough
		}
		return middleware.AuthRateLimit(policy, redisClient, logg)
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

	var redisP db.Pinger
	if redisClient != nil {
		redisP = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimitMW(loginPolicy)).
				Post("/login", controllers.AuthLogin(svcs.Auth, logg))
			r.With(rateLimitMW(registerPolicy), idempotencyMW).
				Post("/register", controllers.AuthRegister(svcs.Register, svcs.Auth, logg))
			if cfg.GoogleOAuth.Enabled() {
				r.With(rateLimitMW(loginPolicy)).
					Post("/google", controllers.AuthGoogle(svcs.Auth, logg))
			}
			r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
		})

		// Catalog reads are public. MaybeAuth lets staff tokens widen the
		// product list to unavailable items.
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaybeAuth(cfg.JWT, sessions, logg))
			r.Get("/categories", controllers.CategoryTree(svcs.Categories, logg))
			r.Get("/categories/{categoryId}", controllers.CategoryDetail(svcs.Categories, logg))
			r.Get("/products", controllers.ProductList(svcs.Products, logg))
			r.Get("/products/{productId}", controllers.ProductDetail(svcs.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Use(idempotencyMW)

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", controllers.UserProfile(svcs.Users, logg))
				r.Put("/profile", controllers.UserProfileUpdate(svcs.Users, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/categories", controllers.CategoryCreate(svcs.Categories, logg))
				r.Put("/categories/{categoryId}", controllers.CategoryUpdate(svcs.Categories, logg))
				r.Delete("/categories/{categoryId}", controllers.CategoryDelete(svcs.Categories, logg))
				r.Post("/products", controllers.ProductCreate(svcs.Products, logg))
				r.Put("/products/{productId}", controllers.ProductUpdate(svcs.Products, logg))
				r.Delete("/products/{productId}", controllers.ProductDelete(svcs.Products, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svcs.Cart, logg))
				r.Post("/add", controllers.CartAdd(svcs.Cart, logg))
				r.Put("/update/{itemId}", controllers.CartUpdate(svcs.Cart, logg))
				r.Delete("/remove/{itemId}", controllers.CartRemove(svcs.Cart, logg))
				r.Post("/checkout", controllers.CartCheckout(svcs.Checkout, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.Post("/", controllers.OrderCreate(svcs.Orders, logg))
					r.Delete("/{orderId}", controllers.OrderDelete(svcs.Orders, logg))
				})
				// Customers may cancel their own orders, so the status route
				// stays open to any authenticated caller and the service
				// enforces who may move an order where.
				r.Patch("/{orderId}/status", controllers.OrderStatusUpdate(svcs.Orders, logg))
			})
		})
	})

	return r
}
