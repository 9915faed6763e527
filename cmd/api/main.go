package main

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc, err := bootstrap.Start(context.Background(), "api", bootstrap.WithRedis())
	if err != nil {
		proc.Fatal(context.Background(), "failed to start api", err)
	}
	defer proc.Close(context.Background())
	cfg, logg := proc.Config, proc.Logger

	services, err := buildServices(cfg, logg, proc.DB, proc.Redis, metrics.NewStoreMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		proc.Fatal(context.Background(), "failed to build services", err)
	}

	addr := ":" + cmp.Or(os.Getenv("PORT"), cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": cmp.Or(os.Getenv("DYNO"), "local"),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, proc.DB, proc.Redis, prometheus.DefaultGatherer, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := bootstrap.SignalContext(context.Background())
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			proc.Fatal(ctx, "api server stopped unexpectedly", err)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, m *metrics.StoreMetrics) (routes.Services, error) {
	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)

	products, err := product.NewService(product.NewRepository(conn), dbClient, logg)
	if err != nil {
		return routes.Services{}, err
	}
	sessions, err := cart.NewRedisSessionStore(redisClient, cfg.Cart.SessionTTL)
	if err != nil {
		return routes.Services{}, err
	}
	carts, err := cart.NewService(sessions, cart.NewRepository(conn), products, logg)
	if err != nil {
		return routes.Services{}, err
	}
	checkoutService, err := checkout.NewService(dbClient, ordersRepo, products, carts, nil, outboxService, m, logg)
	if err != nil {
		return routes.Services{}, err
	}
	paymentsService, err := payments.NewService(ordersRepo, dbClient, outboxService, m, logg, cfg.App.PublicBaseURL)
	if err != nil {
		return routes.Services{}, err
	}
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, m, logg)
	if err != nil {
		return routes.Services{}, err
	}
	reportsService, err := reports.NewService(reports.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Products: products,
		Cart:     carts,
		Checkout: checkoutService,
		Payments: paymentsService,
		Orders:   ordersService,
		Reports:  reportsService,
	}, nil
}
