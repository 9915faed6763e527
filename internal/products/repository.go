package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientStock is returned by the conditional decrements when the row
// holds fewer units than requested or no longer exists.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrInvalidCursor wraps a malformed pagination cursor.
var ErrInvalidCursor = errors.New("invalid cursor")

// SortOrder names the catalog orderings.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

// ParseSortOrder maps query input onto a SortOrder, defaulting to newest.
func ParseSortOrder(value string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(value))) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	default:
		return SortNewest
	}
}

// ListQuery holds the catalog filters.
type ListQuery struct {
	Name       string
	Brand      string
	Category   string
	MaxPrice   *decimal.Decimal
	Sort       SortOrder
	Pagination pagination.Params
}

// Repository wraps product and size-variant persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func orderedSizes(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("label ASC")
}

// FindByProductID loads a product and its sizes by the stable product id.
func (r *Repository) FindByProductID(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Sizes", orderedSizes).
		First(&product, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByRowID loads a product and its sizes by storage row id.
func (r *Repository) FindByRowID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Sizes", orderedSizes).
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Resolve looks the identifier up as a product id first and falls back to the
// row id when the input parses as a uuid.
func (r *Repository) Resolve(ctx context.Context, identifier string) (*models.Product, error) {
	product, err := r.FindByProductID(ctx, identifier)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	rowID, parseErr := uuid.Parse(identifier)
	if parseErr != nil {
		return nil, err
	}
	return r.FindByRowID(ctx, rowID)
}

// LockForUpdate reads the product row under a row lock so a concurrent
// checkout decrement serializes behind the caller's transaction.
func (r *Repository) LockForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns one catalog page. Cursor pagination applies to the newest
// ordering; price orderings return the first page only.
func (r *Repository) List(ctx context.Context, query ListQuery) ([]models.Product, string, error) {
	pageSize := query.Pagination.Size()
	sortOrder := query.Sort
	if sortOrder == "" {
		sortOrder = SortNewest
	}

	qb := r.db.WithContext(ctx).Model(&models.Product{}).Preload("Sizes", orderedSizes)
	if name := strings.TrimSpace(query.Name); name != "" {
		qb = qb.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if brand := strings.TrimSpace(query.Brand); brand != "" {
		qb = qb.Where("LOWER(brand) LIKE ?", "%"+strings.ToLower(brand)+"%")
	}
	if category := strings.TrimSpace(query.Category); category != "" {
		qb = qb.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if query.MaxPrice != nil {
		qb = qb.Where("price <= ?", *query.MaxPrice)
	}

	switch sortOrder {
	case SortPriceAsc:
		qb = qb.Order("price ASC").Order("id ASC").Limit(pageSize)
	case SortPriceDesc:
		qb = qb.Order("price DESC").Order("id ASC").Limit(pageSize)
	default:
		var err error
		if qb, err = pagination.Newest(qb, query.Pagination); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
	}

	var rows []models.Product
	if err := qb.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	if sortOrder != SortNewest {
		return rows, "", nil
	}
	page, next := pagination.Trim(rows, query.Pagination, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}

// Create inserts the product row followed by its size variants.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Omit("Sizes").Create(product).Error; err != nil {
		return err
	}
	return r.insertSizes(ctx, product.ProductID, product.Sizes)
}

// Update saves the product columns and replaces every size variant.
func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Omit("Sizes").Save(product).Error; err != nil {
		return err
	}
	if err := tx.Where("product_id = ?", product.ProductID).Delete(&models.ProductSize{}).Error; err != nil {
		return err
	}
	return r.insertSizes(ctx, product.ProductID, product.Sizes)
}

func (r *Repository) insertSizes(ctx context.Context, productID string, sizes []models.ProductSize) error {
	if len(sizes) == 0 {
		return nil
	}
	for i := range sizes {
		sizes[i].ProductID = productID
		sizes[i].Position = i
	}
	return r.db.WithContext(ctx).Create(&sizes).Error
}

// Delete removes the product and its size variants.
func (r *Repository) Delete(ctx context.Context, productID string) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductSize{}).Error; err != nil {
		return err
	}
	return tx.Where("product_id = ?", productID).Delete(&models.Product{}).Error
}

// IsReferenced reports whether any order line points at the product.
func (r *Repository) IsReferenced(ctx context.Context, productID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of catalog entries.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DecrementStock applies stock = stock - qty only while stock >= qty.
func (r *Repository) DecrementStock(ctx context.Context, productID string, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ? AND stock >= ?", productID, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// DecrementSizeStock applies the conditional decrement to one variant and then
// recomputes the cached product total from the variant rows.
func (r *Repository) DecrementSizeStock(ctx context.Context, productID, label string, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.ProductSize{}).
		Where("product_id = ? AND label = ? AND stock >= ?", productID, label, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return r.RecomputeStock(ctx, productID)
}

const recomputeStockSQL = `
UPDATE products
SET stock = (SELECT COALESCE(SUM(ps.stock), 0) FROM product_sizes ps WHERE ps.product_id = products.product_id),
    updated_at = ?
WHERE product_id = ?
  AND EXISTS (SELECT 1 FROM product_sizes ps WHERE ps.product_id = products.product_id)
`

// RecomputeStock sets products.stock to the variant sum. Products without
// variants keep their flat stock.
func (r *Repository) RecomputeStock(ctx context.Context, productID string) error {
	return r.db.WithContext(ctx).Exec(recomputeStockSQL, time.Now().UTC(), productID).Error
}

// Anomaly kinds reported by AuditIntegrity.
const (
	AnomalyNegativeStock     = "negative_stock"
	AnomalyNegativeSizeStock = "negative_size_stock"
	AnomalySizeSumDrift      = "size_sum_drift"
)

// Anomaly is one integrity finding for a product.
type Anomaly struct {
	ProductID string `json:"productId"`
	Kind      string `json:"kind"`
	Stock     int    `json:"stock"`
	SizeSum   *int   `json:"sizeSum,omitempty"`
}

const auditSQL = `
SELECT p.product_id, p.stock, s.total AS size_sum, s.min_stock, COALESCE(s.cnt, 0) AS size_count
FROM products p
LEFT JOIN (
  SELECT product_id, SUM(stock) AS total, MIN(stock) AS min_stock, COUNT(*) AS cnt
  FROM product_sizes
  GROUP BY product_id
) s ON s.product_id = p.product_id
WHERE p.stock < 0
   OR s.min_stock < 0
   OR (s.cnt > 0 AND s.total <> p.stock)
ORDER BY p.product_id
`

type auditRow struct {
	ProductID string
	Stock     int
	SizeSum   *int
	MinStock  *int
	SizeCount int
}

// AuditIntegrity lists products whose stock is negative or whose cached total
// disagrees with the variant sum.
func (r *Repository) AuditIntegrity(ctx context.Context) ([]Anomaly, error) {
	var rows []auditRow
	if err := r.db.WithContext(ctx).Raw(auditSQL).Scan(&rows).Error; err != nil {
		return nil, err
	}

	anomalies := make([]Anomaly, 0, len(rows))
	for _, row := range rows {
		if row.Stock < 0 {
			anomalies = append(anomalies, Anomaly{ProductID: row.ProductID, Kind: AnomalyNegativeStock, Stock: row.Stock, SizeSum: row.SizeSum})
		}
		if row.MinStock != nil && *row.MinStock < 0 {
			anomalies = append(anomalies, Anomaly{ProductID: row.ProductID, Kind: AnomalyNegativeSizeStock, Stock: row.Stock, SizeSum: row.SizeSum})
		}
		if row.SizeCount > 0 && row.SizeSum != nil && *row.SizeSum != row.Stock {
			anomalies = append(anomalies, Anomaly{ProductID: row.ProductID, Kind: AnomalySizeSumDrift, Stock: row.Stock, SizeSum: row.SizeSum})
		}
	}
	return anomalies, nil
}
