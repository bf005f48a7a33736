package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mwangikariuki/shopkit-backend/api/routes"
	"github.com/mwangikariuki/shopkit-backend/internal/auth"
	"github.com/mwangikariuki/shopkit-backend/internal/cart"
	"github.com/mwangikariuki/shopkit-backend/internal/categories"
	"github.com/mwangikariuki/shopkit-backend/internal/checkout"
	"github.com/mwangikariuki/shopkit-backend/internal/orders"
	"github.com/mwangikariuki/shopkit-backend/internal/products"
	"github.com/mwangikariuki/shopkit-backend/internal/users"
	"github.com/mwangikariuki/shopkit-backend/pkg/auth/session"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db"
	"github.com/mwangikariuki/shopkit-backend/pkg/googleauth"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
	"github.com/mwangikariuki/shopkit-backend/pkg/metrics"
	"github.com/mwangikariuki/shopkit-backend/pkg/migrate"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox"
	"github.com/mwangikariuki/shopkit-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Outbox:         outboxSvc,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	authParams := auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		Accounts:       registerService,
		JWTConfig:      cfg.JWT,
	}
	if cfg.GoogleOAuth.Enabled() {
		googleClient, err := googleauth.NewClient(cfg.GoogleOAuth, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create google oauth client", err)
			os.Exit(1)
		}
		authParams.Google = googleClient
	}
	authService, err := auth.NewService(authParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}
	categoriesService, err := categories.NewService(categories.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create categories service", err)
		os.Exit(1)
	}
	productsService, err := products.NewService(productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(cartRepo, productsRepo, usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(dbClient, cartRepo, ordersRepo, outboxSvc, usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxSvc, usersRepo, productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, httpMetrics, sessionManager, routes.Services{
			Auth:       authService,
			Register:   registerService,
			Users:      usersService,
			Categories: categoriesService,
			Products:   productsService,
			Cart:       cartService,
			Checkout:   checkoutService,
			Orders:     ordersService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
