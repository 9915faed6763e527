package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

// ListFilter narrows the operator order list.
type ListFilter struct {
	Status     *enums.OrderStatus
	From       *time.Time
	To         *time.Time
	Pagination pagination.Params
}

// Repository defines persistence operations for orders and their line snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	LockByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, string, error)
	ListByUser(ctx context.Context, userID string, params pagination.Params) ([]models.Order, string, error)
	Update(ctx context.Context, orderID string, updates map[string]any) error
	ConfirmPayment(ctx context.Context, orderID string, paidAt time.Time) (bool, error)
}
