package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service covers operator order administration and the customer's own
// order history.
type Service interface {
	SetStatus(ctx context.Context, actor access.Actor, orderID, value string) (*OrderDTO, error)
	ListOrders(ctx context.Context, actor access.Actor, filter ListFilter) (*types.Page[OrderDTO], error)
	GetOrder(ctx context.Context, actor access.Actor, orderID string) (*OrderDTO, error)
	ListMyOrders(ctx context.Context, actor access.Actor, params pagination.Params) (*types.Page[OrderDTO], error)
	GetMyOrder(ctx context.Context, actor access.Actor, orderID string) (*OrderDTO, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.StoreMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the order administration service.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, m *metrics.StoreMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) SetStatus(ctx context.Context, actor access.Actor, orderID, value string) (*OrderDTO, error) {
	orderID = strings.TrimSpace(orderID)
	if err := access.Authorize(actor, access.ActionSetOrderStatus, access.OrderResource(orderID, "")); err != nil {
		return nil, err
	}

	var change StatusChange
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}

		change, err = PlanStatusChange(order, value, s.now())
		if err != nil {
			return err
		}
		if len(change.Updates) > 0 {
			if err := repo.Update(ctx, orderID, change.Updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
			}
		}
		if !change.Changed(order) {
			return nil
		}

		actorRef := &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actorRef,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       orderID,
				From:          change.From,
				To:            change.To,
				PaymentStatus: change.PaymentStatus,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "outbox: emit status change")
		}
		if change.MarkedPaid {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Actor:         actorRef,
				Data: payloads.OrderPaidEvent{
					OrderID:       orderID,
					PaymentMethod: order.PaymentMethod,
					PaidAt:        *change.PaidAt,
					Manual:        true,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "outbox: emit order paid")
			}
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set order status")
	}

	s.metrics.StatusChanged(string(change.To))
	logCtx := s.logg.WithOrderID(ctx, orderID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"from":           change.From,
		"to":             change.To,
		"payment_status": change.PaymentStatus,
		"requested":      value,
	})
	s.logg.Info(logCtx, "order status set")

	return s.load(ctx, orderID)
}

func (s *service) ListOrders(ctx context.Context, actor access.Actor, filter ListFilter) (*types.Page[OrderDTO], error) {
	if err := access.Authorize(actor, access.ActionListOrders, access.Resource{Kind: "order"}); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid date range").
			WithDetails(map[string]string{"to": "must not be before from"})
	}
	rows, next, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, listError(err)
	}
	return types.NewPage(NewOrderDTOs(rows), next), nil
}

func (s *service) GetOrder(ctx context.Context, actor access.Actor, orderID string) (*OrderDTO, error) {
	if err := access.Authorize(actor, access.ActionViewAnyOrder, access.OrderResource(orderID, "")); err != nil {
		return nil, err
	}
	return s.load(ctx, orderID)
}

func (s *service) ListMyOrders(ctx context.Context, actor access.Actor, params pagination.Params) (*types.Page[OrderDTO], error) {
	if err := access.Authorize(actor, access.ActionViewOwnOrders, access.Resource{Kind: "order"}); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByUser(ctx, actor.UserID, params)
	if err != nil {
		return nil, listError(err)
	}
	return types.NewPage(NewOrderDTOs(rows), next), nil
}

func (s *service) GetMyOrder(ctx context.Context, actor access.Actor, orderID string) (*OrderDTO, error) {
	if err := access.Authorize(actor, access.ActionViewOwnOrders, access.OrderResource(orderID, "")); err != nil {
		return nil, err
	}
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionViewOwnOrders, access.OrderResource(order.OrderID, order.UserID)); err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) load(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) find(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.FindByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return order, nil
}

func listError(err error) error {
	if errors.Is(err, ErrInvalidCursor) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
}
