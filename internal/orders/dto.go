package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// OrderItemDTO is a purchased line as exposed over the API.
type OrderItemDTO struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Size      string          `json:"size,omitempty"`
}

// OrderDTO is the customer and operator view of an order.
type OrderDTO struct {
	OrderID       string                `json:"orderId"`
	UserID        string                `json:"userId"`
	Email         string                `json:"email,omitempty"`
	Items         []OrderItemDTO        `json:"items"`
	TotalQty      int                   `json:"totalQty"`
	TotalAmount   decimal.Decimal       `json:"totalAmount"`
	Shipping      types.ShippingAddress `json:"shipping"`
	Status        enums.OrderStatus     `json:"status"`
	PaymentMethod enums.PaymentMethod   `json:"paymentMethod"`
	PaymentStatus enums.PaymentStatus   `json:"paymentStatus"`
	PaidAt        *time.Time            `json:"paidAt"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// NewOrderDTO maps a stored order onto its API shape.
func NewOrderDTO(o *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Brand:     it.Brand,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal,
			Size:      it.Size,
		})
	}
	return OrderDTO{
		OrderID:       o.OrderID,
		UserID:        o.UserID,
		Email:         o.Email,
		Items:         items,
		TotalQty:      o.TotalQty,
		TotalAmount:   o.TotalAmount,
		Shipping:      o.Shipping,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// NewOrderDTOs maps a page of orders.
func NewOrderDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewOrderDTO(&rows[i]))
	}
	return out
}
