package cart

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup map[string]*models.Product

func (s stubLookup) FindProduct(_ context.Context, id string) (*models.Product, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func testCatalog() stubLookup {
	return stubLookup{
		"flat": {ProductID: "flat", Name: "Slide", Brand: "Aqua", Price: decimal.RequireFromString("19.99"), Stock: 3},
		"sized": {
			ProductID: "sized", Name: "Runner", Price: decimal.RequireFromString("100"), Stock: 3,
			Sizes: []models.ProductSize{{Label: "M", Stock: 2}, {Label: "L", Stock: 1}},
		},
		"empty": {ProductID: "empty", Name: "Ghost", Price: decimal.NewFromInt(5), Stock: 0},
	}
}

func assertTotals(t *testing.T, c *Cart) {
	t.Helper()
	qty := 0
	amount := decimal.Zero
	for _, line := range c.Items {
		require.GreaterOrEqual(t, line.Quantity, 1)
		assert.True(t, line.Subtotal.Equal(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))))
		qty += line.Quantity
		amount = amount.Add(line.Subtotal)
	}
	assert.Equal(t, qty, c.TotalQty)
	assert.True(t, amount.Equal(c.TotalAmount), "total %s != %s", c.TotalAmount, amount)
}

func TestAddItemClampsAndMerges(t *testing.T) {
	ctx := context.Background()
	lookup := testCatalog()
	c := &Cart{}

	require.NoError(t, AddItem(ctx, c, lookup, "flat", 2, ""))
	require.NoError(t, AddItem(ctx, c, lookup, "flat", 5, ""))
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, models.DefaultProductImage, c.Items[0].ImageURL)

	require.NoError(t, AddItem(ctx, c, lookup, "sized", 0, "M"))
	require.NoError(t, AddItem(ctx, c, lookup, "sized", 9, "L"))
	require.Len(t, c.Items, 3)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.Equal(t, 1, c.Items[2].Quantity)
	assertTotals(t, c)
	assert.True(t, c.TotalAmount.Equal(decimal.RequireFromString("259.97")))
}

func TestAddItemErrors(t *testing.T) {
	ctx := context.Background()
	lookup := testCatalog()
	c := &Cart{}

	assert.True(t, pkgerrors.IsCode(AddItem(ctx, c, lookup, "nope", 1, ""), pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(AddItem(ctx, c, lookup, "empty", 1, ""), pkgerrors.CodeOutOfStock))
	assert.True(t, pkgerrors.IsCode(AddItem(ctx, c, lookup, "sized", 1, ""), pkgerrors.CodeValidation))
	assert.Empty(t, c.Items)
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	lookup := testCatalog()
	c := &Cart{}
	require.NoError(t, AddItem(ctx, c, lookup, "flat", 1, ""))

	require.NoError(t, UpdateQuantity(ctx, c, lookup, "flat", "", 10))
	assert.Equal(t, 3, c.Items[0].Quantity)

	err := UpdateQuantity(ctx, c, lookup, "sized", "M", 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, UpdateQuantity(ctx, c, lookup, "flat", "", 0))
	assert.Empty(t, c.Items)
	assertTotals(t, c)
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	lookup := testCatalog()
	c := &Cart{}
	require.NoError(t, AddItem(ctx, c, lookup, "sized", 1, "M"))
	require.NoError(t, AddItem(ctx, c, lookup, "sized", 1, "L"))

	assert.False(t, RemoveItem(c, "sized", "XL"))
	assert.True(t, RemoveItem(c, "sized", "M"))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "L", c.Items[0].Size)
	assertTotals(t, c)

	Clear(c)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.TotalQty)
	assert.True(t, c.TotalAmount.IsZero())
}

func TestSelectAndWithout(t *testing.T) {
	ctx := context.Background()
	lookup := testCatalog()
	c := &Cart{}
	require.NoError(t, AddItem(ctx, c, lookup, "flat", 2, ""))
	require.NoError(t, AddItem(ctx, c, lookup, "sized", 1, "M"))

	all := Select(*c, nil)
	assert.Len(t, all.Items, 2)

	picked := Select(*c, []LineKey{{ProductID: "sized", Size: "M"}})
	require.Len(t, picked.Items, 1)
	assert.Equal(t, 1, picked.TotalQty)

	rest := Without(*c, Keys(picked))
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "flat", rest.Items[0].ProductID)
	assertTotals(t, &rest)

	require.Len(t, c.Items, 2)
}

func TestMergeSumsWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	lookup := testCatalog()
	guest := &Cart{}
	account := &Cart{}
	require.NoError(t, AddItem(ctx, guest, lookup, "flat", 2, ""))
	require.NoError(t, AddItem(ctx, guest, lookup, "sized", 1, "M"))
	require.NoError(t, AddItem(ctx, account, lookup, "flat", 2, ""))
	require.NoError(t, AddItem(ctx, account, lookup, "sized", 1, "L"))
	account.Items = append(account.Items, snapshot(lookup["empty"], "", 1))
	account.Recalculate()

	merged, dropped, err := Merge(ctx, *guest, *account, lookup)
	require.NoError(t, err)
	assert.Equal(t, []LineKey{{ProductID: "empty"}}, dropped)
	require.Len(t, merged.Items, 3)

	seen := map[LineKey]int{}
	for _, line := range merged.Items {
		seen[keyOf(line)]++
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, "duplicate line %v", key)
	}
	assert.Equal(t, 3, merged.Items[0].Quantity, "flat capped at stock")
	assertTotals(t, &merged)
}
