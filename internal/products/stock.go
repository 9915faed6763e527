package product

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// AvailableStock returns the flat stock, or the variant stock when a size is
// given. An unknown size has no stock.
func AvailableStock(p *models.Product, size string) int {
	if p == nil {
		return 0
	}
	size = strings.TrimSpace(size)
	if size == "" {
		return p.Stock
	}
	stock, ok := p.SizeStock(size)
	if !ok {
		return 0
	}
	return stock
}

// ValidateSize checks the requested size against the product's variants.
// Sized products require one of their labels; flat products take none.
func ValidateSize(p *models.Product, size string) error {
	size = strings.TrimSpace(size)
	if p.HasSizes() {
		if size == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "size is required").
				WithDetails(map[string]string{"size": "is required"})
		}
		if _, ok := p.SizeStock(size); !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "size not offered").
				WithDetails(map[string]string{"size": "is not offered for this product"})
		}
		return nil
	}
	if size != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product has no sizes").
			WithDetails(map[string]string{"size": "must be empty"})
	}
	return nil
}
