package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes catalog reads, operator product management, and the lookup
// used by the cart and checkout engines.
type Service interface {
	FindProduct(ctx context.Context, identifier string) (*models.Product, error)
	List(ctx context.Context, actor access.Actor, query ListQuery) (*types.Page[ProductDTO], error)
	Get(ctx context.Context, actor access.Actor, identifier string) (*ProductDTO, error)
	Create(ctx context.Context, actor access.Actor, input ProductInput) (*ProductDTO, error)
	Update(ctx context.Context, actor access.Actor, identifier string, input ProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, actor access.Actor, identifier string) error
	AuditIntegrity(ctx context.Context) ([]Anomaly, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	logg     *logger.Logger
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg}, nil
}

func (s *service) FindProduct(ctx context.Context, identifier string) (*models.Product, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
			WithDetails(map[string]string{"productId": "is required"})
	}
	product, err := s.repo.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, actor access.Actor, query ListQuery) (*types.Page[ProductDTO], error) {
	if err := access.Authorize(actor, access.ActionViewCatalog, access.Resource{Kind: "product"}); err != nil {
		return nil, err
	}
	if query.MaxPrice != nil && query.MaxPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid budget").
			WithDetails(map[string]string{"budget": "must be zero or more"})
	}
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, NewProductDTO(&rows[i]))
	}
	return types.NewPage(items, next), nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, identifier string) (*ProductDTO, error) {
	if err := access.Authorize(actor, access.ActionViewCatalog, access.Resource{Kind: "product", ID: identifier}); err != nil {
		return nil, err
	}
	product, err := s.FindProduct(ctx, identifier)
	if err != nil {
		return nil, err
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, actor access.Actor, input ProductInput) (*ProductDTO, error) {
	if err := access.Authorize(actor, access.ActionManageProducts, access.Resource{Kind: "product"}); err != nil {
		return nil, err
	}
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		productID = uuid.NewString()
	}
	product := &models.Product{
		ID:        uuid.New(),
		ProductID: productID,
	}
	applyInput(product, input)

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product id already exists").
					WithDetails(map[string]string{"productId": productID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	ctx = s.logg.WithField(ctx, "product_id", product.ProductID)
	s.logg.Info(ctx, "product created")
	return s.reload(ctx, product.ProductID)
}

func (s *service) Update(ctx context.Context, actor access.Actor, identifier string, input ProductInput) (*ProductDTO, error) {
	if err := access.Authorize(actor, access.ActionManageProducts, access.Resource{Kind: "product", ID: identifier}); err != nil {
		return nil, err
	}
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	var productID string
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.Resolve(ctx, strings.TrimSpace(identifier))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		productID = product.ProductID
		applyInput(product, input)
		if err := txRepo.Update(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	ctx = s.logg.WithField(ctx, "product_id", productID)
	s.logg.Info(ctx, "product updated")
	return s.reload(ctx, productID)
}

func (s *service) Delete(ctx context.Context, actor access.Actor, identifier string) error {
	if err := access.Authorize(actor, access.ActionManageProducts, access.Resource{Kind: "product", ID: identifier}); err != nil {
		return err
	}

	var productID string
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.Resolve(ctx, strings.TrimSpace(identifier))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		productID = product.ProductID
		if _, err := txRepo.LockForUpdate(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock product")
		}
		used, err := txRepo.IsReferenced(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check order references")
		}
		if used {
			return pkgerrors.New(pkgerrors.CodeConflict, "product is referenced by orders").
				WithDetails(map[string]string{"reason": "cannot_delete_used", "productId": productID})
		}
		if err := txRepo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}

	ctx = s.logg.WithField(ctx, "product_id", productID)
	s.logg.Info(ctx, "product deleted")
	return nil
}

func (s *service) AuditIntegrity(ctx context.Context) ([]Anomaly, error) {
	anomalies, err := s.repo.AuditIntegrity(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: audit inventory")
	}
	return anomalies, nil
}

func (s *service) reload(ctx context.Context, productID string) (*ProductDTO, error) {
	product, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

// applyInput copies the operator fields onto the model. When sizes are given
// the flat stock becomes their sum.
func applyInput(product *models.Product, input ProductInput) {
	product.Name = strings.TrimSpace(input.Name)
	product.Brand = strings.TrimSpace(input.Brand)
	product.Category = strings.TrimSpace(input.Category)
	product.Description = strings.TrimSpace(input.Description)
	product.Price = input.Price.Round(2)
	product.ImageURL = strings.TrimSpace(input.ImageURL)
	if product.ImageURL == "" {
		product.ImageURL = models.DefaultProductImage
	}

	product.Sizes = make([]models.ProductSize, 0, len(input.Sizes))
	total := 0
	for _, size := range input.Sizes {
		product.Sizes = append(product.Sizes, models.ProductSize{
			ProductID: product.ProductID,
			Label:     strings.TrimSpace(size.Label),
			Stock:     size.Stock,
		})
		total += size.Stock
	}
	if len(product.Sizes) > 0 {
		product.Stock = total
	} else {
		product.Stock = input.Stock
	}
}

func validateProductInput(input ProductInput) error {
	fields := map[string]string{}
	if utf8.RuneCountInString(strings.TrimSpace(input.Name)) < 2 {
		fields["name"] = "must be at least 2 characters"
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Description)) < 5 {
		fields["description"] = "must be at least 5 characters"
	}
	if !input.Price.IsPositive() {
		fields["price"] = "must be greater than 0"
	}
	if strings.TrimSpace(input.Category) == "" {
		fields["category"] = "is required"
	}
	if input.Stock < 0 {
		fields["stock"] = "must be zero or more"
	}
	seen := make(map[string]struct{}, len(input.Sizes))
	for i, size := range input.Sizes {
		label := strings.TrimSpace(size.Label)
		key := fmt.Sprintf("sizes[%d]", i)
		switch {
		case label == "":
			fields[key+".label"] = "is required"
		case size.Stock < 0:
			fields[key+".stock"] = "must be zero or more"
		}
		if _, dup := seen[label]; dup && label != "" {
			fields[key+".label"] = "is duplicated"
		}
		seen[label] = struct{}{}
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(fields)
	}
	return nil
}
