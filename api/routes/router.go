package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Services are the domain services behind the routes.
type Services struct {
	Products product.Service
	Cart     cart.Service
	Checkout checkout.Service
	Payments payments.Service
	Orders   orders.Service
	Reports  reports.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idempotent := middleware.Idempotency(redisStore, cfg.Checkout.IdempotencyTTL, logg)
	checkoutLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "checkout",
		Window: cfg.Checkout.RateLimitWindow,
		Limit:  cfg.Checkout.RateLimit,
	}, redisStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisStore))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(middleware.CartSession(cfg.Cart, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(svc.Products, logg))
			r.Get("/{productId}", controllers.ProductDetail(svc.Products, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(svc.Cart, logg))
			r.Delete("/", controllers.CartClear(svc.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svc.Cart, logg))
			r.Patch("/items", controllers.CartUpdateItem(svc.Cart, logg))
			r.Delete("/items", controllers.CartRemoveItem(svc.Cart, logg))
			r.Post("/merge", controllers.CartMerge(svc.Cart, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.With(checkoutLimit, idempotent).Post("/", controllers.Checkout(svc.Checkout, logg))
			r.With(checkoutLimit, idempotent).Post("/buy-now", controllers.BuyNow(svc.Checkout, logg))
		})

		r.Route("/payments/gcash/{orderId}", func(r chi.Router) {
			r.Get("/", controllers.GCashPaymentPage(svc.Payments, logg))
			r.Get("/status", controllers.GCashPaymentStatus(svc.Payments, logg))
			r.Post("/confirm", controllers.GCashConfirm(svc.Payments, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.MyOrders(svc.Orders, logg))
			r.Get("/{orderId}", controllers.MyOrderDetail(svc.Orders, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		can := func(action access.Action) func(http.Handler) http.Handler {
			return middleware.RequireAccess(action, logg)
		}

		r.With(can(access.ActionViewDashboard)).Get("/dashboard", controllers.AdminDashboard(svc.Reports, logg))
		r.With(can(access.ActionViewDashboard)).Get("/reports/sales", controllers.AdminSalesReport(svc.Reports, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(can(access.ActionListOrders)).Get("/", controllers.AdminOrders(svc.Orders, logg))
			r.With(can(access.ActionViewAnyOrder)).Get("/{orderId}", controllers.AdminOrderDetail(svc.Orders, logg))
			r.With(can(access.ActionSetOrderStatus), idempotent).Patch("/{orderId}/status", controllers.AdminSetOrderStatus(svc.Orders, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(can(access.ActionManageProducts))
			r.Get("/", controllers.ProductList(svc.Products, logg))
			r.With(idempotent).Post("/", controllers.AdminCreateProduct(svc.Products, logg))
			r.Put("/{productId}", controllers.AdminUpdateProduct(svc.Products, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(svc.Products, logg))
		})
	})

	return r
}
