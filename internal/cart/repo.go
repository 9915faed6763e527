package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository persists the account mirror of a signed-in user's cart.
type AccountRepository interface {
	WithTx(tx *gorm.DB) AccountRepository
	FindByUser(ctx context.Context, userID string) (*models.AccountCart, error)
	Upsert(ctx context.Context, record *models.AccountCart) error
}

// Repository is the gorm-backed AccountRepository.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) AccountRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser loads the mirrored cart. A missing row yields (nil, nil).
func (r *Repository) FindByUser(ctx context.Context, userID string) (*models.AccountCart, error) {
	var record models.AccountCart
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert replaces the mirrored cart for record.UserID.
func (r *Repository) Upsert(ctx context.Context, record *models.AccountCart) error {
	record.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "total_qty", "total_amount", "updated_at"}),
		}).
		Create(record).Error
}
