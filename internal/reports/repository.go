package reports

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository runs the aggregate queries behind the back-office reports.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type statusCountRow struct {
	Status enums.OrderStatus
	Count  int64
}

type productRankRow struct {
	ProductID string
	Name      string
	Quantity  int64
	Revenue   decimal.Decimal
}

type dayRow struct {
	Day        string
	Total      decimal.Decimal
	OrderCount int64
}

func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error
	return n, err
}

func (r *Repository) StatusCounts(ctx context.Context) ([]statusCountRow, error) {
	var rows []statusCountRow
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// RevenueByStatus sums order totals for one status.
func (r *Repository) RevenueByStatus(ctx context.Context, status enums.OrderStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("status = ?", status).
		Scan(&total).Error
	return total, err
}

func (r *Repository) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// TopProducts ranks products by units sold across orders in status.
func (r *Repository) TopProducts(ctx context.Context, status enums.OrderStatus, limit int) ([]productRankRow, error) {
	var rows []productRankRow
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.product_id AS product_id, MAX(oi.name) AS name, SUM(oi.quantity) AS quantity, COALESCE(SUM(oi.subtotal), 0) AS revenue").
		Joins("JOIN orders o ON o.order_id = oi.order_id").
		Where("o.status = ?", status).
		Group("oi.product_id").
		Order("quantity DESC").
		Order("oi.product_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

type monthRow struct {
	Month      string
	Total      decimal.Decimal
	OrderCount int64
}

// DailyTotals groups orders by UTC calendar day within [from, to).
// A nil status includes every order.
func (r *Repository) DailyTotals(ctx context.Context, from, to *time.Time, status *enums.OrderStatus) ([]dayRow, error) {
	day, _ := bucketExprs(r.db.Dialector.Name())
	var rows []dayRow
	err := r.totals(ctx, day+" AS day", day, "day", from, to, status).Scan(&rows).Error
	for i := range rows {
		if len(rows[i].Day) > len(dayLayout) {
			rows[i].Day = rows[i].Day[:len(dayLayout)]
		}
	}
	return rows, err
}

// MonthlyTotals groups orders by UTC calendar month (YYYY-MM) within [from, to).
func (r *Repository) MonthlyTotals(ctx context.Context, from, to *time.Time, status *enums.OrderStatus) ([]monthRow, error) {
	_, month := bucketExprs(r.db.Dialector.Name())
	var rows []monthRow
	err := r.totals(ctx, month+" AS month", month, "month", from, to, status).Scan(&rows).Error
	return rows, err
}

func (r *Repository) totals(ctx context.Context, bucket, group, order string, from, to *time.Time, status *enums.OrderStatus) *gorm.DB {
	qb := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select(bucket + ", COALESCE(SUM(total_amount), 0) AS total, COUNT(*) AS order_count")
	if from != nil {
		qb = qb.Where("created_at >= ?", from.UTC())
	}
	if to != nil {
		qb = qb.Where("created_at < ?", to.UTC())
	}
	if status != nil {
		qb = qb.Where("status = ?", *status)
	}
	return qb.Group(group).Order(order + " ASC")
}

// bucketExprs returns the day and month grouping expressions for a dialect.
// Postgres casts timestamptz in the session time zone, so it is pinned to UTC.
func bucketExprs(dialect string) (day, month string) {
	if dialect == "postgres" {
		return "DATE(created_at AT TIME ZONE 'UTC')", "TO_CHAR(created_at AT TIME ZONE 'UTC', 'YYYY-MM')"
	}
	return "DATE(created_at)", "STRFTIME('%Y-%m', created_at)"
}

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)
