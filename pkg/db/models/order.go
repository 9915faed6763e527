package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the immutable snapshot produced by checkout. Only status and
// payment fields change after creation.
type Order struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       string                `gorm:"column:order_id;not null;uniqueIndex:ux_orders_order_id"`
	UserID        string                `gorm:"column:user_id;not null;index"`
	Email         string                `gorm:"column:email"`
	TotalQty      int                   `gorm:"column:total_qty;not null"`
	TotalAmount   decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Shipping      types.ShippingAddress `gorm:"column:shipping;type:jsonb;serializer:json;not null"`
	Status        enums.OrderStatus     `gorm:"column:status;not null"`
	PaymentMethod enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	PaymentStatus enums.PaymentStatus   `gorm:"column:payment_status;not null"`
	PaidAt        *time.Time            `gorm:"column:paid_at"`
	Items         []OrderItem           `gorm:"foreignKey:OrderID;references:OrderID"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// IsPaid reports whether payment has been recorded.
func (o Order) IsPaid() bool {
	return o.PaymentStatus == enums.PaymentStatusPaid
}
