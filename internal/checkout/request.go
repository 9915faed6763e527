package checkout

import (
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

// Request converts selected cart lines into an order. No items selects the
// whole cart.
type Request struct {
	Items         []cart.LineKey        `json:"items"`
	Shipping      types.ShippingAddress `json:"shipping"`
	PaymentMethod string                `json:"paymentMethod"`
}

// BuyNowRequest orders a single product without touching the cart.
type BuyNowRequest struct {
	ProductID     string                `json:"productId"`
	Size          string                `json:"size,omitempty"`
	Quantity      int                   `json:"quantity"`
	Shipping      types.ShippingAddress `json:"shipping"`
	PaymentMethod string                `json:"paymentMethod"`
}

// NextAction tells the client where to go after the order is placed.
type NextAction struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

const (
	NextActionRedirect  = "redirect"
	NextActionViewOrder = "view_order"
)

// Result is the placed order and the follow-up step.
type Result struct {
	Order      orders.OrderDTO `json:"order"`
	NextAction NextAction      `json:"nextAction"`
}

// PaymentPagePath is where a deferred payment continues.
func PaymentPagePath(orderID string) string {
	return "/api/v1/payments/gcash/" + orderID
}

func nextActionFor(order orders.OrderDTO) NextAction {
	if order.PaymentMethod.IsDeferred() {
		return NextAction{Type: NextActionRedirect, URL: PaymentPagePath(order.OrderID)}
	}
	return NextAction{Type: NextActionViewOrder, URL: "/api/v1/orders/" + order.OrderID}
}

// paymentState is the initial order state for a payment method.
type paymentState struct {
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	PaidAt        *time.Time
}

func initialPaymentState(method enums.PaymentMethod, now time.Time) paymentState {
	switch {
	case method.SettlesAtCheckout():
		paidAt := now.UTC()
		return paymentState{Status: enums.OrderStatusToShip, PaymentStatus: enums.PaymentStatusPaid, PaidAt: &paidAt}
	case method.IsDeferred():
		return paymentState{Status: enums.OrderStatusToPay, PaymentStatus: enums.PaymentStatusPending}
	default:
		return paymentState{Status: enums.OrderStatusToShip, PaymentStatus: enums.PaymentStatusUnpaid}
	}
}

// validateOrderInput checks shipping and payment method together so the
// caller sees every bad field at once.
func validateOrderInput(shipping *types.ShippingAddress, rawMethod string) (enums.PaymentMethod, error) {
	trimShipping(shipping)
	details := map[string]string{}
	if err := validation.StructPrefixed(shipping, "shipping"); err != nil {
		if fields, ok := pkgerrors.As(err).Details().(map[string]string); ok {
			for k, v := range fields {
				details[k] = v
			}
		}
	}
	method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(rawMethod)))
	if err != nil {
		details["paymentMethod"] = "must be one of card, gcash, cod"
	}
	if len(details) > 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout details").WithDetails(details)
	}
	return method, nil
}

func trimShipping(s *types.ShippingAddress) {
	s.FullName = strings.TrimSpace(s.FullName)
	s.AddressLine1 = strings.TrimSpace(s.AddressLine1)
	s.AddressLine2 = strings.TrimSpace(s.AddressLine2)
	s.City = strings.TrimSpace(s.City)
	s.Region = strings.TrimSpace(s.Region)
	s.PostalCode = strings.TrimSpace(s.PostalCode)
	s.Phone = strings.TrimSpace(s.Phone)
}
