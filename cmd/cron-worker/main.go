package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "cron-worker", bootstrap.WithRedis())
	if err != nil {
		proc.Fatal(context.Background(), "failed to start cron worker", err)
	}
	defer proc.Close(context.Background())
	cfg, logg := proc.Config, proc.Logger

	lock, err := cron.NewRedisLock(proc.Redis, proc.Redis.LockKey("cron-worker"), 0)
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cron lock", err)
	}

	registry, err := buildRegistry(cfg, logg, proc.DB, metrics.NewStoreMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		proc.Fatal(context.Background(), "failed to register cron jobs", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cron service", err)
	}

	ctx, stop := bootstrap.SignalContext(context.Background())
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, m *metrics.StoreMetrics) (*cron.Registry, error) {
	products, err := product.NewService(product.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, err
	}
	audit, err := cron.NewInventoryAuditJob(cron.InventoryAuditJobParams{
		Logger:  logg,
		Auditor: products,
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(audit, retention), nil
}
