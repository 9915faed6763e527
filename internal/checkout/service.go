package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/reservation"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type productLoader interface {
	FindProduct(ctx context.Context, identifier string) (*models.Product, error)
}

type cartStore interface {
	Get(ctx context.Context, actor access.Actor, sessionID string) (*cart.Cart, error)
	RemoveLines(ctx context.Context, actor access.Actor, sessionID string, keys []cart.LineKey) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.Request) error
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.Request) error {
	return reservation.Reserve(ctx, tx, requests)
}

// Service places orders from the cart or a single product.
type Service interface {
	CheckoutCart(ctx context.Context, actor access.Actor, sessionID string, req Request) (*Result, error)
	BuyNow(ctx context.Context, actor access.Actor, req BuyNowRequest) (*Result, error)
}

type service struct {
	tx          txRunner
	ordersRepo  orders.Repository
	products    productLoader
	carts       cartStore
	reservation reservationRunner
	outbox      outboxPublisher
	metrics     *metrics.StoreMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	products productLoader,
	carts cartStore,
	reservation reservationRunner,
	publisher outboxPublisher,
	m *metrics.StoreMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if reservation == nil {
		reservation = reservationEngine{}
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		ordersRepo:  ordersRepo,
		products:    products,
		carts:       carts,
		reservation: reservation,
		outbox:      publisher,
		metrics:     m,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// line is one priced purchase line ready to snapshot.
type line struct {
	key      cart.LineKey
	name     string
	brand    string
	price    decimal.Decimal
	quantity int
}

func (s *service) CheckoutCart(ctx context.Context, actor access.Actor, sessionID string, req Request) (*Result, error) {
	if err := access.Authorize(actor, access.ActionCheckout, access.Resource{Kind: "cart", ID: sessionID}); err != nil {
		return nil, err
	}
	method, err := validateOrderInput(&req.Shipping, req.PaymentMethod)
	if err != nil {
		s.metrics.CheckoutFailed("validation")
		return nil, err
	}

	current, err := s.carts.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	selected := cart.Select(*current, req.Items)
	if selected.IsEmpty() {
		s.metrics.CheckoutFailed("empty_selection")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no items selected").
			WithDetails(map[string]string{"items": "select at least one cart line"})
	}
	if missing := missingKeys(selected, req.Items); len(missing) > 0 {
		s.metrics.CheckoutFailed("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected items are not in the cart").
			WithDetails(map[string]any{"items": missing})
	}

	lines := make([]line, 0, len(selected.Items))
	for _, item := range selected.Items {
		lines = append(lines, line{
			key:      cart.LineKey{ProductID: item.ProductID, Size: item.Size},
			name:     item.Name,
			brand:    item.Brand,
			price:    item.Price,
			quantity: item.Quantity,
		})
	}

	result, err := s.place(ctx, actor, lines, req.Shipping, method)
	if err != nil {
		return nil, err
	}

	keys := cart.Keys(selected)
	if err := s.carts.RemoveLines(ctx, actor, sessionID, keys); err != nil {
		logCtx := s.logg.WithOrderID(ctx, result.Order.OrderID)
		logCtx = s.logg.WithCartSession(logCtx, sessionID)
		s.logg.Error(logCtx, "checkout.cart_cleanup_failed", err)
	}
	return result, nil
}

func (s *service) BuyNow(ctx context.Context, actor access.Actor, req BuyNowRequest) (*Result, error) {
	if err := access.Authorize(actor, access.ActionCheckout, access.Resource{Kind: "product", ID: req.ProductID}); err != nil {
		return nil, err
	}
	method, err := validateOrderInput(&req.Shipping, req.PaymentMethod)
	if err != nil {
		s.metrics.CheckoutFailed("validation")
		return nil, err
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		s.metrics.CheckoutFailed("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required").
			WithDetails(map[string]string{"productId": "is required"})
	}

	p, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	size := strings.TrimSpace(req.Size)
	if err := product.ValidateSize(p, size); err != nil {
		s.metrics.CheckoutFailed("validation")
		return nil, err
	}
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}

	lines := []line{{
		key:      cart.LineKey{ProductID: p.ProductID, Size: size},
		name:     p.Name,
		brand:    p.Brand,
		price:    p.Price,
		quantity: qty,
	}}
	return s.place(ctx, actor, lines, req.Shipping, method)
}

// place runs the live stock check and then writes the order, decrements and
// event in one transaction.
func (s *service) place(ctx context.Context, actor access.Actor, lines []line, shipping types.ShippingAddress, method enums.PaymentMethod) (*Result, error) {
	if err := s.precheck(ctx, lines); err != nil {
		s.metrics.CheckoutFailed(failureReason(err))
		return nil, err
	}

	now := s.now().UTC()
	state := initialPaymentState(method, now)
	order := &models.Order{
		ID:            uuid.New(),
		OrderID:       uuid.NewString(),
		UserID:        actor.UserID,
		Email:         actor.Email,
		Shipping:      shipping,
		Status:        state.Status,
		PaymentMethod: method,
		PaymentStatus: state.PaymentStatus,
		PaidAt:        state.PaidAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	requests := make([]reservation.Request, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		subtotal := l.price.Mul(decimal.NewFromInt(int64(l.quantity))).Round(2)
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: l.key.ProductID,
			Name:      l.name,
			Brand:     l.brand,
			Price:     l.price,
			Quantity:  l.quantity,
			Subtotal:  subtotal,
			Size:      l.key.Size,
		})
		order.TotalQty += l.quantity
		total = total.Add(subtotal)
		requests = append(requests, reservation.Request{ProductID: l.key.ProductID, Size: l.key.Size, Qty: l.quantity})
	}
	order.TotalAmount = total

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create order")
		}
		if err := s.reservation.Reserve(ctx, tx, requests); err != nil {
			return err
		}
		if err := s.emitOrderCreatedEvent(ctx, tx, actor, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "outbox: emit order created")
		}
		var err error
		created, err = repo.FindByOrderID(ctx, order.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		return nil
	})
	if err != nil {
		s.metrics.CheckoutFailed(failureReason(err))
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout")
	}

	s.metrics.OrderCreated(string(method))
	logCtx := s.logg.WithOrderID(ctx, created.OrderID)
	logCtx = s.logg.WithUserID(logCtx, actor.UserID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"payment_method": method,
		"total_qty":      created.TotalQty,
		"total_amount":   created.TotalAmount.StringFixed(2),
	})
	s.logg.Info(logCtx, "order placed")

	dto := orders.NewOrderDTO(created)
	return &Result{Order: dto, NextAction: nextActionFor(dto)}, nil
}

// precheck re-reads each product and rejects lines that exceed live stock
// before anything is written.
func (s *service) precheck(ctx context.Context, lines []line) error {
	requested := map[cart.LineKey]int{}
	for _, l := range lines {
		requested[l.key] += l.quantity
	}
	for _, l := range lines {
		p, err := s.products.FindProduct(ctx, l.key.ProductID)
		if err != nil {
			return err
		}
		if err := product.ValidateSize(p, l.key.Size); err != nil {
			return err
		}
		available := product.AvailableStock(p, l.key.Size)
		if want := requested[l.key]; want > available {
			return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock").
				WithDetails(reservation.ShortfallDetails{
					ProductID: l.key.ProductID,
					Size:      l.key.Size,
					Requested: want,
					Available: available,
				})
		}
	}
	return nil
}

func (s *service) emitOrderCreatedEvent(ctx context.Context, tx *gorm.DB, actor access.Actor, order *models.Order) error {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.OrderID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.OrderID,
			UserID:        order.UserID,
			TotalQty:      order.TotalQty,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: order.PaymentStatus,
			Status:        order.Status,
			Lines:         lines,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}

func missingKeys(selected cart.Cart, requested []cart.LineKey) []cart.LineKey {
	if len(requested) == 0 {
		return nil
	}
	have := map[cart.LineKey]struct{}{}
	for _, k := range cart.Keys(selected) {
		have[k] = struct{}{}
	}
	var missing []cart.LineKey
	for _, k := range requested {
		k = cart.LineKey{ProductID: strings.TrimSpace(k.ProductID), Size: strings.TrimSpace(k.Size)}
		if _, ok := have[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficient, pkgerrors.CodeOutOfStock:
		return "insufficient_stock"
	case pkgerrors.CodeNotFound:
		return "product_not_found"
	case pkgerrors.CodeValidation:
		return "validation"
	default:
		return "dependency"
	}
}
