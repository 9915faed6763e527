package product

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SizeDTO is a size variant as exposed over the API.
type SizeDTO struct {
	Label string `json:"label"`
	Stock int    `json:"stock"`
}

// ProductDTO is the catalog and admin representation of a product.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Stock       int             `json:"stock"`
	InStock     bool            `json:"inStock"`
	Sizes       []SizeDTO       `json:"sizes"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewProductDTO maps a stored product onto its API shape.
func NewProductDTO(p *models.Product) ProductDTO {
	sizes := make([]SizeDTO, 0, len(p.Sizes))
	for _, s := range p.Sizes {
		sizes = append(sizes, SizeDTO{Label: s.Label, Stock: s.Stock})
	}
	return ProductDTO{
		ID:          p.ID,
		ProductID:   p.ProductID,
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		Sizes:       sizes,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// SizeInput is one requested size variant.
type SizeInput struct {
	Label string `json:"label" validate:"required,max=40"`
	Stock int    `json:"stock" validate:"min=0"`
}

// ProductInput carries an operator create or update. ProductID is honoured on
// create only and defaults to a fresh uuid.
type ProductInput struct {
	ProductID   string          `json:"productId,omitempty" validate:"omitempty,max=64"`
	Name        string          `json:"name" validate:"required"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Stock       int             `json:"stock" validate:"min=0"`
	Sizes       []SizeInput     `json:"sizes" validate:"dive"`
}
