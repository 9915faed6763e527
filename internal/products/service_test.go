package product

import (
	"context"
	"io"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client := dbtest.Client(t)
	svc, err := NewService(NewRepository(client.DB()), client, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, client.DB()
}

func validInput() ProductInput {
	return ProductInput{
		Name:        "Trail Runner",
		Brand:       "Stride",
		Category:    "running",
		Description: "grippy outsole",
		Price:       decimal.RequireFromString("89.50"),
		Stock:       4,
	}
}

func TestServiceCreateDefaultsAndSizeSum(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := validInput()
	in.Sizes = []SizeInput{{Label: "US 8", Stock: 2}, {Label: "US 9", Stock: 5}}
	created, err := svc.Create(ctx, access.Operator("op-1"), in)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(created.ProductID)
	assert.NoError(t, parseErr)
	assert.Equal(t, models.DefaultProductImage, created.ImageURL)
	assert.Equal(t, 7, created.Stock)
	assert.True(t, created.InStock)
	require.Len(t, created.Sizes, 2)
	assert.Equal(t, "US 8", created.Sizes[0].Label)
}

func TestServiceCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	in := validInput()
	in.Name = "x"
	in.Description = "abc"
	in.Price = decimal.Zero
	in.Category = " "
	in.Sizes = []SizeInput{{Label: "M", Stock: 1}, {Label: "M", Stock: 1}}

	_, err := svc.Create(context.Background(), access.Operator("op-1"), in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	fields, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	for _, key := range []string{"name", "description", "price", "category", "sizes[1].label"} {
		assert.Contains(t, fields, key)
	}
}

func TestServiceCreateRequiresOperator(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), access.Customer("u-1", "u@example.com"), validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.Create(context.Background(), access.Guest(), validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestServiceCreateDuplicateProductID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	in := validInput()
	in.ProductID = "fixed-1"
	_, err := svc.Create(ctx, access.Operator("op"), in)
	require.NoError(t, err)

	_, err = svc.Create(ctx, access.Operator("op"), in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestServiceUpdateReplacesSizes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	op := access.Operator("op")

	in := validInput()
	in.Sizes = []SizeInput{{Label: "S", Stock: 1}, {Label: "M", Stock: 1}}
	created, err := svc.Create(ctx, op, in)
	require.NoError(t, err)

	in.Name = "Trail Runner 2"
	in.Sizes = []SizeInput{{Label: "L", Stock: 9}}
	updated, err := svc.Update(ctx, op, created.ID.String(), in)
	require.NoError(t, err)
	assert.Equal(t, created.ProductID, updated.ProductID)
	assert.Equal(t, "Trail Runner 2", updated.Name)
	assert.Equal(t, 9, updated.Stock)
	require.Len(t, updated.Sizes, 1)
	assert.Equal(t, "L", updated.Sizes[0].Label)

	in.Sizes = nil
	in.Stock = 3
	flat, err := svc.Update(ctx, op, created.ProductID, in)
	require.NoError(t, err)
	assert.Equal(t, 3, flat.Stock)
	assert.Empty(t, flat.Sizes)

	_, err = svc.Update(ctx, op, "nope", in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceDeleteGuardsReferencedProducts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	op := access.Operator("op")

	used, err := svc.Create(ctx, op, validInput())
	require.NoError(t, err)
	unused, err := svc.Create(ctx, op, validInput())
	require.NoError(t, err)

	orderID := uuid.NewString()
	require.NoError(t, conn.Exec(`INSERT INTO orders (id, order_id, user_id, total_qty, total_amount, shipping, status, payment_method, payment_status, created_at, updated_at)
		VALUES (?, ?, 'u-1', 1, 89.5, '{}', 'to_ship', 'cod', 'unpaid', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, uuid.NewString(), orderID).Error)
	require.NoError(t, conn.Exec(`INSERT INTO order_items (id, order_id, position, product_id, name, price, quantity, subtotal)
		VALUES (?, ?, 0, ?, 'Trail Runner', 89.5, 1, 89.5)`, uuid.NewString(), orderID, used.ProductID).Error)

	err = svc.Delete(ctx, op, used.ProductID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "cannot_delete_used", typed.Details().(map[string]string)["reason"])

	require.NoError(t, svc.Delete(ctx, op, unused.ProductID))
	_, err = svc.FindProduct(ctx, unused.ProductID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.FindProduct(ctx, used.ProductID)
	assert.NoError(t, err)
}

func TestServiceListRejectsBadCursor(t *testing.T) {
	svc, _ := newTestService(t)
	query := ListQuery{}
	query.Pagination.Cursor = "not base64!"
	_, err := svc.List(context.Background(), access.Guest(), query)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAvailableStockAndValidateSize(t *testing.T) {
	sized := &models.Product{Stock: 3, Sizes: []models.ProductSize{{Label: "M", Stock: 3}}}
	flat := &models.Product{Stock: 5}

	assert.Equal(t, 3, AvailableStock(sized, "M"))
	assert.Equal(t, 0, AvailableStock(sized, "XL"))
	assert.Equal(t, 5, AvailableStock(flat, ""))
	assert.Equal(t, 0, AvailableStock(nil, ""))

	assert.NoError(t, ValidateSize(sized, "M"))
	assert.True(t, pkgerrors.IsCode(ValidateSize(sized, ""), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.IsCode(ValidateSize(sized, "XL"), pkgerrors.CodeValidation))
	assert.NoError(t, ValidateSize(flat, ""))
	assert.True(t, pkgerrors.IsCode(ValidateSize(flat, "M"), pkgerrors.CodeValidation))
}
