package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCreator struct {
	existing map[string]bool
	actors   []access.Actor
	fail     error
}

func (s *stubCreator) Create(_ context.Context, actor access.Actor, input product.ProductInput) (*product.ProductDTO, error) {
	s.actors = append(s.actors, actor)
	if s.fail != nil {
		return nil, s.fail
	}
	if s.existing[input.ProductID] {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product id already exists")
	}
	return &product.ProductDTO{ProductID: input.ProductID, Name: input.Name}, nil
}

func TestSeedProductsSkipsExisting(t *testing.T) {
	creator := &stubCreator{existing: map[string]bool{"tee-1": true}}
	file := `[
		{"productId":"tee-1","name":"Tee","category":"tops","price":"19.99","stock":3},
		{"productId":"cap-1","name":"Cap","category":"hats","price":12,"stock":5}
	]`
	var out bytes.Buffer

	require.NoError(t, seedProducts(context.Background(), creator, strings.NewReader(file), &out))
	assert.Contains(t, out.String(), "skip  tee-1")
	assert.Contains(t, out.String(), "added cap-1 Cap")
	assert.Contains(t, out.String(), "seeded 1 products, skipped 1")
	require.Len(t, creator.actors, 2)
	assert.True(t, creator.actors[0].IsOperator())
}

func TestSeedProductsStopsOnOtherErrors(t *testing.T) {
	creator := &stubCreator{fail: pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")}
	err := seedProducts(context.Background(), creator, strings.NewReader(`[{"name":"Bad","category":"x"}]`), &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSeedProductsRejectsMalformedFile(t *testing.T) {
	err := seedProducts(context.Background(), &stubCreator{}, strings.NewReader(`{"not":"an array"}`), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode seed file")
}

type stubStatusSetter struct {
	actor   access.Actor
	orderID string
	value   string
	err     error
}

func (s *stubStatusSetter) SetStatus(_ context.Context, actor access.Actor, orderID, value string) (*orders.OrderDTO, error) {
	s.actor, s.orderID, s.value = actor, orderID, value
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{OrderID: orderID, Status: enums.OrderStatus(value)}, nil
}

func TestSetOrderStatusActsAsOperator(t *testing.T) {
	setter := &stubStatusSetter{}
	var out bytes.Buffer

	require.NoError(t, setOrderStatus(context.Background(), setter, "order-1", "shipped", &out))
	assert.True(t, setter.actor.IsOperator())
	assert.Equal(t, "order-1", setter.orderID)
	assert.Equal(t, "order order-1 is now shipped\n", out.String())
}

func TestSetOrderStatusPropagatesErrors(t *testing.T) {
	setter := &stubStatusSetter{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	err := setOrderStatus(context.Background(), setter, "missing", "shipped", &bytes.Buffer{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMintTokenRoundTrips(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 5}
	var out bytes.Buffer

	require.NoError(t, mintToken(cfg, time.Now(), "user-9", "u@example.com", "operator", &out))
	claims, err := auth.ParseAccessToken(cfg, strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID)
	assert.Equal(t, enums.ActorRoleOperator, claims.Role)
}

func TestMintTokenRejectsGuest(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 5}
	require.Error(t, mintToken(cfg, time.Now(), "user-9", "", "guest", &bytes.Buffer{}))
	require.Error(t, mintToken(cfg, time.Now(), "user-9", "", "admin", &bytes.Buffer{}))
}

type stubRunner struct {
	names []string
	err   error
}

func (s *stubRunner) RunOnce(_ context.Context, names ...string) error {
	s.names = names
	return s.err
}

func TestRunAudit(t *testing.T) {
	runner := &stubRunner{}
	var out bytes.Buffer
	require.NoError(t, runAudit(context.Background(), runner, &out))
	assert.Equal(t, []string{inventoryAuditJob}, runner.names)
	assert.Contains(t, out.String(), "clean")

	runner.err = errors.New("2 inventory anomalies")
	require.Error(t, runAudit(context.Background(), runner, &bytes.Buffer{}))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "create"},
		{"products", "seed"},
		{"inventory", "audit"},
		{"orders", "set-status"},
		{"token", "mint"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
