package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// cartView is the cart payload. cartCount is the badge number shown next to
// the cart icon.
type cartView struct {
	*cart.Cart
	CartCount int   `json:"cartCount"`
	Removed   *bool `json:"removed,omitempty"`
}

func viewOf(c *cart.Cart) cartView {
	return cartView{Cart: c, CartCount: c.TotalQty}
}

func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, err := svc.Get(ctx, middleware.ActorFromContext(ctx), middleware.CartSessionFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(c))
	}
}

func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var input cart.AddInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		c, err := svc.Add(ctx, middleware.ActorFromContext(ctx), middleware.CartSessionFromContext(ctx), input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(c))
	}
}

// CartUpdateItem sets a line quantity; zero removes the line.
func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var input cart.UpdateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		c, err := svc.Update(ctx, middleware.ActorFromContext(ctx), middleware.CartSessionFromContext(ctx), input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(c))
	}
}

func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		key := cart.LineKey{ProductID: strings.TrimSpace(q.Get("productId")), Size: strings.TrimSpace(q.Get("size"))}
		if key.ProductID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "productId is required").WithDetails(map[string]string{"productId": "is required"}))
			return
		}
		c, removed, err := svc.Remove(ctx, middleware.ActorFromContext(ctx), middleware.CartSessionFromContext(ctx), key)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view := viewOf(c)
		view.Removed = &removed
		responses.WriteSuccess(w, view)
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, err := svc.Clear(ctx, middleware.ActorFromContext(ctx), middleware.CartSessionFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(c))
	}
}

// CartMerge folds the guest session cart into the signed-in customer's cart.
func CartMerge(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, err := svc.MergeAtLogin(ctx, middleware.ActorFromContext(ctx), middleware.CartSessionFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(c))
	}
}
