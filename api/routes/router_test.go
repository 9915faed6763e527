package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memRedis struct {
	stubPinger
	data  map[string]string
	count map[string]int64
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, count: map[string]int64{}}
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *memRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.count[scope]++
	return m.count[scope] <= limit, m.count[scope], nil
}

type stubProducts struct {
	product.Service
	lastActor access.Actor
}

func (s *stubProducts) List(_ context.Context, actor access.Actor, q product.ListQuery) (*types.Page[product.ProductDTO], error) {
	s.lastActor = actor
	return &types.Page[product.ProductDTO]{Items: []product.ProductDTO{{ProductID: "runner", Name: "Runner"}}}, nil
}

type stubOrders struct {
	orders.Service
	statusCalls int
}

func (s *stubOrders) SetStatus(_ context.Context, actor access.Actor, orderID, value string) (*orders.OrderDTO, error) {
	s.statusCalls++
	if err := access.Authorize(actor, access.ActionSetOrderStatus, access.Resource{}); err != nil {
		return nil, err
	}
	if orderID == "missing" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	status, err := enums.ParseOrderStatus(value)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status")
	}
	return &orders.OrderDTO{OrderID: orderID, Status: status}, nil
}

func (s *stubOrders) ListMyOrders(_ context.Context, actor access.Actor, _ pagination.Params) (*types.Page[orders.OrderDTO], error) {
	if actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return &types.Page[orders.OrderDTO]{Items: []orders.OrderDTO{}}, nil
}

type stubPayments struct {
	payments.Service
	confirmed []string
}

func (s *stubPayments) ConfirmPayment(_ context.Context, _ access.Actor, orderID string) (*orders.OrderDTO, error) {
	s.confirmed = append(s.confirmed, orderID)
	return &orders.OrderDTO{OrderID: orderID, Status: enums.OrderStatusToShip, PaymentStatus: enums.PaymentStatusPaid}, nil
}

type fixture struct {
	handler  http.Handler
	cfg      *config.Config
	products *stubProducts
	orders   *stubOrders
	payments *stubPayments
	redis    *memRedis
}

func newFixture(t *testing.T, dbErr error) fixture {
	t.Helper()
	return newFixtureWithLimit(t, dbErr, 5)
}

func newFixtureWithLimit(t *testing.T, dbErr error, checkoutLimit int) fixture {
	t.Helper()
	cfg := &config.Config{
		App:      config.AppConfig{Env: "test"},
		JWT:      config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 10},
		Cart:     config.CartConfig{CookieName: "sf_cart", SessionTTL: time.Hour},
		Checkout: config.CheckoutConfig{RateLimitWindow: time.Minute, RateLimit: checkoutLimit, IdempotencyTTL: time.Hour},
	}
	reg := prometheus.NewRegistry()
	metrics.NewStoreMetrics(reg)
	f := fixture{cfg: cfg, products: &stubProducts{}, orders: &stubOrders{}, payments: &stubPayments{}, redis: newMemRedis()}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	f.handler = NewRouter(cfg, logg, stubPinger{err: dbErr}, f.redis, reg, Services{
		Products: f.products,
		Orders:   f.orders,
		Payments: f.payments,
	})
	return f
}

func (f fixture) token(t *testing.T, userID string, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)

	down := newFixture(t, errors.New("connection refused"))
	rec := down.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_inventory_anomalies")
}

func TestPublicCatalogAllowsGuestsAndIssuesCartCookie(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/products?sort=price_asc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.ActorRoleGuest, f.products.lastActor.Role)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var sawCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sf_cart" {
			sawCookie = true
		}
	}
	assert.True(t, sawCookie)
}

func TestCustomerOrdersNeedSignIn(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "user-1", enums.ActorRoleCustomer))
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestAdminRoutesRequireOperator(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/api/admin/products", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "user-1", enums.ActorRoleCustomer))
	rec := f.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeForbidden), errorCode(t, rec))

	req = httptest.NewRequest(http.MethodGet, "/api/admin/products", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "op-1", enums.ActorRoleOperator))
	assert.Equal(t, http.StatusOK, f.do(req).Code)
	assert.True(t, f.products.lastActor.IsOperator())
}

func TestAdminSetStatusIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	token := f.token(t, "op-1", enums.ActorRoleOperator)
	send := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/ord-1/status", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		return f.do(req)
	}

	assert.Equal(t, http.StatusBadRequest, send("", `{"status":"to_receive"}`).Code)

	first := send("k1", `{"status":"to_receive"}`)
	require.Equal(t, http.StatusOK, first.Code)
	replay := send("k1", `{"status":"to_receive"}`)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, f.orders.statusCalls)

	reused := send("k1", `{"status":"completed"}`)
	assert.Equal(t, http.StatusConflict, reused.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, reused))
}

func TestAdminSetStatusValidatesBody(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/ord-1/status", strings.NewReader(`{"state":"x"}`))
	req.Header.Set("Authorization", "Bearer "+f.token(t, "op-1", enums.ActorRoleOperator))
	req.Header.Set("Idempotency-Key", "k2")
	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.orders.statusCalls)
}

func TestCheckoutIsRateLimited(t *testing.T) {
	f := newFixtureWithLimit(t, nil, 1)
	token := f.token(t, "user-9", enums.ActorRoleCustomer)

	var codes []int
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		codes = append(codes, f.do(req).Code)
	}
	assert.Equal(t, http.StatusBadRequest, codes[0], "first call passes the limiter and stops at the missing Idempotency-Key")
	assert.Equal(t, http.StatusTooManyRequests, codes[1])
}

func TestGCashConfirmNeedsNoIdempotencyKey(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 2; i++ {
		rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/payments/gcash/ord-9/confirm", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, []string{"ord-9", "ord-9"}, f.payments.confirmed, "each scan reaches the service, which settles the order once")
}
