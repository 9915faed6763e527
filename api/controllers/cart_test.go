package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// stubCart holds one session cart. Only the read and remove paths are used.
type stubCart struct {
	cart.Service
	c *cart.Cart
}

func (s *stubCart) Get(context.Context, access.Actor, string) (*cart.Cart, error) {
	return s.c, nil
}

func (s *stubCart) Remove(_ context.Context, _ access.Actor, _ string, key cart.LineKey) (*cart.Cart, bool, error) {
	return s.c, cart.RemoveItem(s.c, key.ProductID, key.Size), nil
}

type cartBody struct {
	Data struct {
		Items     []types.CartLine `json:"items"`
		TotalQty  int              `json:"totalQty"`
		CartCount int              `json:"cartCount"`
		Removed   *bool            `json:"removed"`
	} `json:"data"`
}

func newStubCart() *stubCart {
	c := &cart.Cart{Items: []types.CartLine{
		{ProductID: "runner", Name: "Runner", Price: decimal.RequireFromString("10.00"), Quantity: 2, Subtotal: decimal.RequireFromString("20.00")},
	}}
	c.Recalculate()
	return &stubCart{c: c}
}

func callCart(t *testing.T, h http.HandlerFunc, method, target string) cartBody {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(middleware.WithCartSession(req.Context(), "sess-1"))
	rec := httptest.NewRecorder()
	h(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body cartBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCartFetchReportsCartCount(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	body := callCart(t, CartFetch(newStubCart(), logg), http.MethodGet, "/api/v1/cart")

	assert.Len(t, body.Data.Items, 1)
	assert.Equal(t, 2, body.Data.TotalQty)
	assert.Equal(t, 2, body.Data.CartCount)
	assert.Nil(t, body.Data.Removed, "only a removal reports the flag")
}

func TestCartRemoveItemReportsRemoval(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc := newStubCart()
	h := CartRemoveItem(svc, logg)

	missing := callCart(t, h, http.MethodDelete, "/api/v1/cart/items?productId=walker")
	require.NotNil(t, missing.Data.Removed)
	assert.False(t, *missing.Data.Removed)
	assert.Equal(t, 2, missing.Data.CartCount)

	removed := callCart(t, h, http.MethodDelete, "/api/v1/cart/items?productId=runner")
	require.NotNil(t, removed.Data.Removed)
	assert.True(t, *removed.Data.Removed)
	assert.Zero(t, removed.Data.CartCount)
	assert.Empty(t, removed.Data.Items)
}
