package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// AccountCart mirrors a signed-in user's session cart.
type AccountCart struct {
	UserID      string           `gorm:"column:user_id;primaryKey"`
	Items       []types.CartLine `gorm:"column:items;type:jsonb;serializer:json;not null"`
	TotalQty    int              `gorm:"column:total_qty;not null"`
	TotalAmount decimal.Decimal  `gorm:"column:total_amount;type:numeric(12,2);not null"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (AccountCart) TableName() string { return "account_carts" }
