package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine summarizes one purchased line for downstream consumers.
type OrderLine struct {
	ProductID string          `json:"productId"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderCreatedEvent is emitted in the checkout transaction.
type OrderCreatedEvent struct {
	OrderID       string              `json:"orderId"`
	UserID        string              `json:"userId"`
	TotalQty      int                 `json:"totalQty"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Status        enums.OrderStatus   `json:"status"`
	Lines         []OrderLine         `json:"lines"`
}

// OrderPaidEvent is emitted when a deferred payment is confirmed or an
// operator marks the order paid.
type OrderPaidEvent struct {
	OrderID       string              `json:"orderId"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	PaidAt        time.Time           `json:"paidAt"`
	Manual        bool                `json:"manual"`
}

// OrderStatusChangedEvent is emitted for every operator status change.
type OrderStatusChangedEvent struct {
	OrderID       string              `json:"orderId"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
}
