package models

// ProductSize is a per-size stock variant of a product.
type ProductSize struct {
	ProductID string `gorm:"column:product_id;primaryKey"`
	Label     string `gorm:"column:label;primaryKey"`
	Position  int    `gorm:"column:position;not null"`
	Stock     int    `gorm:"column:stock;not null"`
}

func (ProductSize) TableName() string { return "product_sizes" }
