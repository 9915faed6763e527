package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestAuthorizeMatrix(t *testing.T) {
	guest := Guest()
	customer := Customer("user-1", "a@example.com")
	operator := Operator("op-1")

	cases := []struct {
		name   string
		actor  Actor
		action Action
		want   pkgerrors.Code
	}{
		{"guest uses cart", guest, ActionUseCart, ""},
		{"customer uses cart", customer, ActionUseCart, ""},
		{"operator blocked from cart", operator, ActionUseCart, pkgerrors.CodeForbidden},
		{"guest cannot checkout", guest, ActionCheckout, pkgerrors.CodeUnauthorized},
		{"customer checks out", customer, ActionCheckout, ""},
		{"operator cannot checkout", operator, ActionCheckout, pkgerrors.CodeForbidden},
		{"guest merges nothing", guest, ActionMergeCart, pkgerrors.CodeUnauthorized},
		{"guest confirms payment", guest, ActionPayDeferred, ""},
		{"operator blocked from payment page", operator, ActionPayDeferred, pkgerrors.CodeForbidden},
		{"customer cannot list all orders", customer, ActionListOrders, pkgerrors.CodeForbidden},
		{"operator sets status", operator, ActionSetOrderStatus, ""},
		{"operator manages products", operator, ActionManageProducts, ""},
		{"guest views catalog", guest, ActionViewCatalog, ""},
		{"customer cannot see dashboard", customer, ActionViewDashboard, pkgerrors.CodeForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.action, Resource{})
			if tc.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.want, pkgerrors.As(err).Code())
		})
	}
}

func TestAuthorizeOwnOrderHidesForeignOrders(t *testing.T) {
	customer := Customer("user-1", "")

	require.NoError(t, Authorize(customer, ActionViewOwnOrders, OrderResource("o-1", "user-1")))

	err := Authorize(customer, ActionViewOwnOrders, OrderResource("o-2", "user-2"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAuthorizeCustomerWithoutIdentity(t *testing.T) {
	err := Authorize(Actor{Role: "customer"}, ActionCheckout, Resource{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestAuthorizeUnknownAction(t *testing.T) {
	err := Authorize(Operator("op"), Action("nuke"), Resource{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
