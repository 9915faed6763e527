package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AddInput is a request to add units of a product.
type AddInput struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
}

// UpdateInput sets a line's quantity.
type UpdateInput struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Service applies cart operations to the session cart and mirrors the result
// to the account of a signed-in customer.
type Service interface {
	Get(ctx context.Context, actor access.Actor, sessionID string) (*Cart, error)
	Add(ctx context.Context, actor access.Actor, sessionID string, input AddInput) (*Cart, error)
	Update(ctx context.Context, actor access.Actor, sessionID string, input UpdateInput) (*Cart, error)
	Remove(ctx context.Context, actor access.Actor, sessionID string, key LineKey) (*Cart, bool, error)
	Clear(ctx context.Context, actor access.Actor, sessionID string) (*Cart, error)
	MergeAtLogin(ctx context.Context, actor access.Actor, sessionID string) (*Cart, error)
	RemoveLines(ctx context.Context, actor access.Actor, sessionID string, keys []LineKey) error
}

type service struct {
	sessions SessionStore
	accounts AccountRepository
	products ProductLookup
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(sessions SessionStore, accounts AccountRepository, products ProductLookup, logg *logger.Logger) (Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{sessions: sessions, accounts: accounts, products: products, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, sessionID string) (*Cart, error) {
	if err := s.authorize(actor, access.ActionUseCart, sessionID); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionID)
}

func (s *service) Add(ctx context.Context, actor access.Actor, sessionID string, input AddInput) (*Cart, error) {
	return s.mutate(ctx, actor, sessionID, func(c *Cart) error {
		return AddItem(ctx, c, s.products, strings.TrimSpace(input.ProductID), input.Quantity, input.Size)
	})
}

func (s *service) Update(ctx context.Context, actor access.Actor, sessionID string, input UpdateInput) (*Cart, error) {
	return s.mutate(ctx, actor, sessionID, func(c *Cart) error {
		return UpdateQuantity(ctx, c, s.products, input.ProductID, input.Size, input.Quantity)
	})
}

// Remove drops one line and reports whether it was in the cart. A missing
// line is not an error.
func (s *service) Remove(ctx context.Context, actor access.Actor, sessionID string, key LineKey) (*Cart, bool, error) {
	var removed bool
	c, err := s.mutate(ctx, actor, sessionID, func(c *Cart) error {
		removed = RemoveItem(c, key.ProductID, key.Size)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return c, removed, nil
}

func (s *service) Clear(ctx context.Context, actor access.Actor, sessionID string) (*Cart, error) {
	return s.mutate(ctx, actor, sessionID, func(c *Cart) error {
		Clear(c)
		return nil
	})
}

// RemoveLines drops processed lines after a checkout commit.
func (s *service) RemoveLines(ctx context.Context, actor access.Actor, sessionID string, keys []LineKey) error {
	_, err := s.mutate(ctx, actor, sessionID, func(c *Cart) error {
		*c = Without(*c, keys)
		return nil
	})
	return err
}

// MergeAtLogin folds the guest session cart into the customer's account cart
// and stores the result in both places.
func (s *service) MergeAtLogin(ctx context.Context, actor access.Actor, sessionID string) (*Cart, error) {
	if err := s.authorize(actor, access.ActionMergeCart, sessionID); err != nil {
		return nil, err
	}
	guest, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	record, err := s.accounts.FindByUser(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load account cart")
	}
	account := Cart{}
	if record != nil {
		account.Items = record.Items
	}

	merged, dropped, err := Merge(ctx, *guest, account, s.products)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		logCtx := s.logg.WithField(ctx, "dropped_lines", dropped)
		s.logg.Warn(logCtx, "cart.merge_dropped_lines")
	}

	if err := s.save(ctx, sessionID, &merged); err != nil {
		return nil, err
	}
	s.mirror(ctx, actor, &merged)
	return &merged, nil
}

func (s *service) mutate(ctx context.Context, actor access.Actor, sessionID string, apply func(*Cart) error) (*Cart, error) {
	if err := s.authorize(actor, access.ActionUseCart, sessionID); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sessionID, c); err != nil {
		return nil, err
	}
	s.mirror(ctx, actor, c)
	return c, nil
}

func (s *service) authorize(actor access.Actor, action access.Action, sessionID string) error {
	if err := access.Authorize(actor, action, access.Resource{Kind: "cart", ID: sessionID}); err != nil {
		return err
	}
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session required")
	}
	return nil
}

func (s *service) load(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: load cart session")
	}
	return c, nil
}

func (s *service) save(ctx context.Context, sessionID string, c *Cart) error {
	if err := s.sessions.Save(ctx, sessionID, c); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: save cart session")
	}
	return nil
}

// mirror copies the session cart to the account row. Failures are logged and
// never reach the shopper.
func (s *service) mirror(ctx context.Context, actor access.Actor, c *Cart) {
	if !actor.IsCustomer() {
		return
	}
	record := &models.AccountCart{
		UserID:      actor.UserID,
		Items:       c.Items,
		TotalQty:    c.TotalQty,
		TotalAmount: c.TotalAmount,
	}
	if err := s.accounts.Upsert(ctx, record); err != nil {
		logCtx := s.logg.WithUserID(ctx, actor.UserID)
		s.logg.Error(logCtx, "cart.mirror_failed", err)
	}
}
