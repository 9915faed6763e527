package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultProductImage is used when a product is created without an image.
const DefaultProductImage = "/images/placeholder-shoe.jpg"

// Product is a catalog entry. When Sizes is non-empty, Stock caches their sum.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   string          `gorm:"column:product_id;not null;uniqueIndex:ux_products_product_id"`
	Name        string          `gorm:"column:name;not null"`
	Brand       string          `gorm:"column:brand"`
	Category    string          `gorm:"column:category;not null"`
	Description string          `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL    string          `gorm:"column:image_url;not null"`
	Stock       int             `gorm:"column:stock;not null"`
	Sizes       []ProductSize   `gorm:"foreignKey:ProductID;references:ProductID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// HasSizes reports whether stock is tracked per size variant.
func (p Product) HasSizes() bool {
	return len(p.Sizes) > 0
}

// SizeStock returns the stock of the named variant and whether it exists.
func (p Product) SizeStock(label string) (int, bool) {
	for _, s := range p.Sizes {
		if s.Label == label {
			return s.Stock, true
		}
	}
	return 0, false
}
