package cart

import (
	"context"
	"strings"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// ProductLookup resolves a product with its live stock.
type ProductLookup interface {
	FindProduct(ctx context.Context, identifier string) (*models.Product, error)
}

// Cart is the session-scoped shopping cart. Totals are derived from Items and
// recomputed after every mutation.
type Cart struct {
	Items       []types.CartLine `json:"items"`
	TotalQty    int              `json:"totalQty"`
	TotalAmount decimal.Decimal  `json:"totalAmount"`
}

// LineKey identifies one cart line.
type LineKey struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size,omitempty"`
}

func keyOf(line types.CartLine) LineKey {
	return LineKey{ProductID: line.ProductID, Size: line.Size}
}

func normalizeKey(k LineKey) LineKey {
	return LineKey{ProductID: strings.TrimSpace(k.ProductID), Size: strings.TrimSpace(k.Size)}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Recalculate refreshes line subtotals and cart totals.
func (c *Cart) Recalculate() {
	if c.Items == nil {
		c.Items = []types.CartLine{}
	}
	totalQty := 0
	totalAmount := decimal.Zero
	for i := range c.Items {
		line := &c.Items[i]
		line.Subtotal = line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		totalQty += line.Quantity
		totalAmount = totalAmount.Add(line.Subtotal)
	}
	c.TotalQty = totalQty
	c.TotalAmount = totalAmount
}

func (c *Cart) find(key LineKey) int {
	for i, line := range c.Items {
		if keyOf(line) == key {
			return i
		}
	}
	return -1
}

// AddItem adds qty units of the product, clamped to available stock. An
// existing line for the same (productId, size) absorbs the quantity.
func AddItem(ctx context.Context, c *Cart, lookup ProductLookup, productID string, qty int, size string) error {
	if qty < 1 {
		qty = 1
	}
	size = strings.TrimSpace(size)

	p, err := lookup.FindProduct(ctx, productID)
	if err != nil {
		return err
	}
	if err := product.ValidateSize(p, size); err != nil {
		return err
	}
	available := product.AvailableStock(p, size)
	if available <= 0 {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "this product is out of stock").
			WithDetails(map[string]any{"productId": p.ProductID, "size": size})
	}

	key := LineKey{ProductID: p.ProductID, Size: size}
	if idx := c.find(key); idx >= 0 {
		c.Items[idx].Quantity = min(c.Items[idx].Quantity+qty, available)
	} else {
		c.Items = append(c.Items, snapshot(p, size, min(qty, available)))
	}
	c.Recalculate()
	return nil
}

func snapshot(p *models.Product, size string, qty int) types.CartLine {
	image := p.ImageURL
	if image == "" {
		image = models.DefaultProductImage
	}
	return types.CartLine{
		ProductID: p.ProductID,
		Name:      p.Name,
		Brand:     p.Brand,
		Price:     p.Price,
		ImageURL:  image,
		Size:      size,
		Quantity:  qty,
	}
}

// UpdateQuantity sets a line's quantity, clamped to live stock. A quantity
// below one removes the line.
func UpdateQuantity(ctx context.Context, c *Cart, lookup ProductLookup, productID, size string, qty int) error {
	key := normalizeKey(LineKey{ProductID: productID, Size: size})
	if qty < 1 {
		RemoveItem(c, key.ProductID, key.Size)
		return nil
	}
	idx := c.find(key)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}

	p, err := lookup.FindProduct(ctx, key.ProductID)
	if err != nil {
		return err
	}
	available := product.AvailableStock(p, key.Size)
	if available <= 0 {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "this product is out of stock").
			WithDetails(map[string]any{"productId": key.ProductID, "size": key.Size})
	}
	c.Items[idx].Quantity = min(qty, available)
	c.Recalculate()
	return nil
}

// RemoveItem drops the matching line and reports whether one was removed.
func RemoveItem(c *Cart, productID, size string) bool {
	idx := c.find(normalizeKey(LineKey{ProductID: productID, Size: size}))
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.Recalculate()
	return true
}

// Clear empties the cart.
func Clear(c *Cart) {
	c.Items = []types.CartLine{}
	c.Recalculate()
}

// Select returns a cart holding only the lines named by keys. No keys selects
// every line.
func Select(c Cart, keys []LineKey) Cart {
	if len(keys) == 0 {
		out := Cart{Items: append([]types.CartLine(nil), c.Items...)}
		out.Recalculate()
		return out
	}
	wanted := keySet(keys)
	out := Cart{}
	for _, line := range c.Items {
		if _, ok := wanted[keyOf(line)]; ok {
			out.Items = append(out.Items, line)
		}
	}
	out.Recalculate()
	return out
}

// Without returns a cart with the lines named by keys removed.
func Without(c Cart, keys []LineKey) Cart {
	drop := keySet(keys)
	out := Cart{}
	for _, line := range c.Items {
		if _, ok := drop[keyOf(line)]; !ok {
			out.Items = append(out.Items, line)
		}
	}
	out.Recalculate()
	return out
}

// Keys lists the line keys in cart order.
func Keys(c Cart) []LineKey {
	keys := make([]LineKey, 0, len(c.Items))
	for _, line := range c.Items {
		keys = append(keys, keyOf(line))
	}
	return keys
}

func keySet(keys []LineKey) map[LineKey]struct{} {
	set := make(map[LineKey]struct{}, len(keys))
	for _, k := range keys {
		set[normalizeKey(k)] = struct{}{}
	}
	return set
}

// Merge folds the guest cart into the account cart. Quantities for the same
// (productId, size) are summed and capped at live stock. Lines whose product
// vanished, whose size is no longer valid, or which are out of stock are
// dropped and reported.
func Merge(ctx context.Context, guest, account Cart, lookup ProductLookup) (Cart, []LineKey, error) {
	merged := Cart{}
	var order []LineKey
	quantities := map[LineKey]int{}
	snapshots := map[LineKey]types.CartLine{}

	for _, source := range [][]types.CartLine{account.Items, guest.Items} {
		for _, line := range source {
			key := keyOf(line)
			if _, seen := quantities[key]; !seen {
				order = append(order, key)
				snapshots[key] = line
			}
			quantities[key] += line.Quantity
		}
	}

	var dropped []LineKey
	for _, key := range order {
		p, err := lookup.FindProduct(ctx, key.ProductID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				dropped = append(dropped, key)
				continue
			}
			return Cart{}, nil, err
		}
		if product.ValidateSize(p, key.Size) != nil {
			dropped = append(dropped, key)
			continue
		}
		available := product.AvailableStock(p, key.Size)
		if available <= 0 {
			dropped = append(dropped, key)
			continue
		}
		line := snapshots[key]
		line.Quantity = min(quantities[key], available)
		merged.Items = append(merged.Items, line)
	}
	merged.Recalculate()
	return merged, dropped, nil
}
