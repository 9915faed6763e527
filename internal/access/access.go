// Package access decides which actor may perform which storefront or
// back-office action. Decisions are pure and take the actor explicitly.
package access

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Actor is the caller of an engine operation.
type Actor struct {
	UserID string
	Email  string
	Role   enums.ActorRole
}

// Guest returns an anonymous storefront actor.
func Guest() Actor {
	return Actor{Role: enums.ActorRoleGuest}
}

// Customer returns a signed-in storefront actor.
func Customer(userID, email string) Actor {
	return Actor{UserID: userID, Email: email, Role: enums.ActorRoleCustomer}
}

// Operator returns a back-office actor.
func Operator(userID string) Actor {
	return Actor{UserID: userID, Role: enums.ActorRoleOperator}
}

// IsCustomer reports whether the actor is a signed-in shopper with an identity.
func (a Actor) IsCustomer() bool {
	return a.Role == enums.ActorRoleCustomer && strings.TrimSpace(a.UserID) != ""
}

// IsOperator reports whether the actor may use back-office actions.
func (a Actor) IsOperator() bool {
	return a.Role == enums.ActorRoleOperator
}

// Action names an operation subject to authorization.
type Action string

const (
	ActionViewCatalog    Action = "catalog.view"
	ActionUseCart        Action = "cart.use"
	ActionMergeCart      Action = "cart.merge"
	ActionCheckout       Action = "checkout.place"
	ActionViewOwnOrders  Action = "orders.view_own"
	ActionPayDeferred    Action = "payments.deferred"
	ActionListOrders     Action = "admin.orders.list"
	ActionViewAnyOrder   Action = "admin.orders.view"
	ActionSetOrderStatus Action = "admin.orders.set_status"
	ActionManageProducts Action = "admin.products.manage"
	ActionViewDashboard  Action = "admin.dashboard.view"
)

// Resource identifies the object an action targets. OwnerID is set when the
// resource belongs to a specific user.
type Resource struct {
	Kind    string
	ID      string
	OwnerID string
}

// OrderResource describes an order for ownership checks.
func OrderResource(orderID, ownerID string) Resource {
	return Resource{Kind: "order", ID: orderID, OwnerID: ownerID}
}

var allowedRoles = map[Action][]enums.ActorRole{
	ActionViewCatalog:    {enums.ActorRoleGuest, enums.ActorRoleCustomer, enums.ActorRoleOperator},
	ActionUseCart:        {enums.ActorRoleGuest, enums.ActorRoleCustomer},
	ActionMergeCart:      {enums.ActorRoleCustomer},
	ActionCheckout:       {enums.ActorRoleCustomer},
	ActionViewOwnOrders:  {enums.ActorRoleCustomer},
	ActionPayDeferred:    {enums.ActorRoleGuest, enums.ActorRoleCustomer},
	ActionListOrders:     {enums.ActorRoleOperator},
	ActionViewAnyOrder:   {enums.ActorRoleOperator},
	ActionSetOrderStatus: {enums.ActorRoleOperator},
	ActionManageProducts: {enums.ActorRoleOperator},
	ActionViewDashboard:  {enums.ActorRoleOperator},
}

// Authorize returns nil when actor may perform action on resource.
//
// A customer touching another customer's order gets NOT_FOUND rather than
// FORBIDDEN so order ids cannot be probed.
func Authorize(actor Actor, action Action, resource Resource) error {
	roles, ok := allowedRoles[action]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown action")
	}
	if !hasRole(roles, actor.Role) {
		if actor.Role == enums.ActorRoleGuest && requiresIdentity(roles) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "action not permitted for role")
	}
	if actor.Role == enums.ActorRoleCustomer && strings.TrimSpace(actor.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if action == ActionViewOwnOrders && resource.OwnerID != "" && resource.OwnerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func hasRole(roles []enums.ActorRole, role enums.ActorRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// requiresIdentity reports whether a signed-in customer could do what a guest cannot.
func requiresIdentity(roles []enums.ActorRole) bool {
	return hasRole(roles, enums.ActorRoleCustomer)
}
