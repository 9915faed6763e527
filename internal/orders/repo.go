package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidCursor wraps a malformed pagination cursor.
var ErrInvalidCursor = errors.New("invalid cursor")

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the order row and then its line snapshots.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Omit("Items").Create(order).Error; err != nil {
		return err
	}
	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.OrderID
		order.Items[i].Position = i
	}
	return tx.Create(&order.Items).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		First(&order, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByOrderID reads the order under a row lock for a read-decide-write
// status change.
func (r *repository) LockByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, string, error) {
	qb := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != nil {
		qb = qb.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		qb = qb.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		qb = qb.Where("created_at < ?", filter.To.UTC())
	}
	return r.page(qb, filter.Pagination)
}

func (r *repository) ListByUser(ctx context.Context, userID string, params pagination.Params) ([]models.Order, string, error) {
	qb := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	return r.page(qb, params)
}

// page applies newest-first cursor pagination to qb.
func (r *repository) page(qb *gorm.DB, params pagination.Params) ([]models.Order, string, error) {
	qb, err := pagination.Newest(qb, params)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var rows []models.Order
	if err := qb.Preload("Items", orderedItems).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

func (r *repository) Update(ctx context.Context, orderID string, updates map[string]any) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ?", orderID).
		UpdateColumns(updates).Error
}

// ConfirmPayment marks an open, unpaid order paid in one conditional update.
// A to_pay order moves to to_ship. It reports whether this call applied.
func (r *repository) ConfirmPayment(ctx context.Context, orderID string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ? AND payment_status <> ? AND status NOT IN ?",
			orderID, enums.PaymentStatusPaid, []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusRefund}).
		UpdateColumns(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"paid_at":        paidAt.UTC(),
			"status":         gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", enums.OrderStatusToPay, enums.OrderStatusToShip),
			"updated_at":     paidAt.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
