// Package reservation applies checkout stock decrements inside the order
// transaction. Each line is a conditional update, so stock never drops below
// zero and a shortfall rolls the whole order back.
package reservation

import (
	"context"
	"errors"
	"strings"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

// Request is one purchased line to take out of stock.
type Request struct {
	ProductID string
	Size      string
	Qty       int
}

// ShortfallDetails names the line that could not be reserved.
type ShortfallDetails struct {
	ProductID string `json:"productId"`
	Size      string `json:"size,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Reserve decrements stock for every request using tx. It stops at the first
// line that cannot be covered and returns INSUFFICIENT_STOCK.
func Reserve(ctx context.Context, tx *gorm.DB, requests []Request) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	repo := product.NewRepository(tx)
	for _, req := range requests {
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]string{"quantity": "must be at least 1"})
		}
		size := strings.TrimSpace(req.Size)

		var err error
		if size == "" {
			err = repo.DecrementStock(ctx, req.ProductID, req.Qty)
		} else {
			err = repo.DecrementSizeStock(ctx, req.ProductID, size, req.Qty)
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, product.ErrInsufficientStock) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement stock")
		}

		available := 0
		if current, lookupErr := repo.FindByProductID(ctx, req.ProductID); lookupErr == nil {
			available = product.AvailableStock(current, size)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInsufficient, err, "insufficient stock").
			WithDetails(ShortfallDetails{
				ProductID: req.ProductID,
				Size:      size,
				Requested: req.Qty,
				Available: available,
			})
	}
	return nil
}
