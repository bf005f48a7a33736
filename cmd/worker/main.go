package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/mwangikariuki/shopkit-backend/internal/notifications"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
	"github.com/mwangikariuki/shopkit-backend/pkg/mail"
	"github.com/mwangikariuki/shopkit-backend/pkg/migrate"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/idempotency"
	"github.com/mwangikariuki/shopkit-backend/pkg/pubsub"
	"github.com/mwangikariuki/shopkit-backend/pkg/redis"
	"github.com/mwangikariuki/shopkit-backend/pkg/sms"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	mailClient, err := mail.NewClient(context.Background(), cfg.Mail, logg)
	requireResource(ctx, logg, "mail", err)

	smsClient, err := sms.NewClient(context.Background(), cfg.SMS, logg)
	requireResource(ctx, logg, "sms", err)

	dispatcher, err := notifications.NewDispatcher(
		notifications.NewRepository(dbClient.DB()),
		mailClient,
		smsClient,
		cfg.Mail,
		cfg.SMS,
		cfg.Store,
		logg,
	)
	requireResource(ctx, logg, "notification dispatcher", err)

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	orderConsumer, err := notifications.NewConsumer(dispatcher, pubsubClient.OrdersSubscription(), idempotencyManager, logg)
	requireResource(ctx, logg, "order consumer", err)

	accountConsumer, err := notifications.NewConsumer(dispatcher, pubsubClient.NotificationSubscription(), idempotencyManager, logg)
	requireResource(ctx, logg, "account consumer", err)

	service, err := NewService(ServiceParams{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		PubSub:          pubsubClient,
		OrderConsumer:   orderConsumer,
		AccountConsumer: accountConsumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "notification worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "notification worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
