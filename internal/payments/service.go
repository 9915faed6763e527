package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PaymentPage is what the checkout device shows while waiting for the
// second device to confirm.
type PaymentPage struct {
	Order      orders.OrderDTO `json:"order"`
	ConfirmURL string          `json:"confirmUrl"`
	StatusURL  string          `json:"statusUrl"`
}

// Status is the polling answer. ContinueURL is set once the order is paid.
type Status struct {
	Paid        bool   `json:"paid"`
	ContinueURL string `json:"continueUrl,omitempty"`
}

// Service drives the deferred two-device payment flow.
type Service interface {
	GetOrderForPayment(ctx context.Context, actor access.Actor, orderID string) (*PaymentPage, error)
	PollPaymentStatus(ctx context.Context, actor access.Actor, orderID string) (*Status, error)
	ConfirmPayment(ctx context.Context, actor access.Actor, orderID string) (*orders.OrderDTO, error)
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.StoreMetrics
	logg    *logger.Logger
	baseURL string
	now     func() time.Time
}

// NewService builds the payment service. publicBaseURL prefixes the
// confirmation link encoded for the second device.
func NewService(repo orders.Repository, tx txRunner, publisher outboxPublisher, m *metrics.StoreMetrics, logg *logger.Logger, publicBaseURL string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		metrics: m,
		logg:    logg,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}, nil
}

func pagePath(orderID string) string {
	return "/api/v1/payments/gcash/" + orderID
}

func (s *service) GetOrderForPayment(ctx context.Context, actor access.Actor, orderID string) (*PaymentPage, error) {
	order, err := s.load(ctx, s.repo, actor, orderID)
	if err != nil {
		return nil, err
	}
	path := pagePath(order.OrderID)
	return &PaymentPage{
		Order:      orders.NewOrderDTO(order),
		ConfirmURL: s.baseURL + path + "/confirm",
		StatusURL:  path + "/status",
	}, nil
}

func (s *service) PollPaymentStatus(ctx context.Context, actor access.Actor, orderID string) (*Status, error) {
	order, err := s.load(ctx, s.repo, actor, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid() {
		return &Status{}, nil
	}
	return &Status{Paid: true, ContinueURL: "/api/v1/orders/" + order.OrderID}, nil
}

// ConfirmPayment marks a deferred order paid exactly once. Repeated or racing
// confirmations return the paid order without touching paidAt.
func (s *service) ConfirmPayment(ctx context.Context, actor access.Actor, orderID string) (*orders.OrderDTO, error) {
	var (
		result  *models.Order
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, actor, orderID)
		if err != nil {
			return err
		}
		if order.Status.Voids() {
			return voidedConflict(order)
		}
		if order.IsPaid() {
			result = order
			return nil
		}

		paidAt := s.now().UTC()
		applied, err = repo.ConfirmPayment(ctx, order.OrderID, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: confirm payment")
		}

		current, err := repo.FindByOrderID(ctx, order.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		if !applied {
			// another confirmation or an operator change won the race
			if current.Status.Voids() {
				return voidedConflict(current)
			}
			result = current
			return nil
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.OrderID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.OrderPaidEvent{
				OrderID:       current.OrderID,
				PaymentMethod: current.PaymentMethod,
				PaidAt:        paidAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "outbox: emit order paid")
		}
		result = current
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment")
	}

	logCtx := s.logg.WithOrderID(ctx, result.OrderID)
	if applied {
		s.metrics.PaymentConfirmed()
		s.logg.Info(logCtx, "payment confirmed")
	} else {
		s.logg.Debug(logCtx, "payment already confirmed")
	}
	dto := orders.NewOrderDTO(result)
	return &dto, nil
}

// load authorizes the actor and returns a deferred-payment order. Orders
// paid any other way are reported as not found.
func (s *service) load(ctx context.Context, repo orders.Repository, actor access.Actor, orderID string) (*models.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if err := access.Authorize(actor, access.ActionPayDeferred, access.OrderResource(orderID, "")); err != nil {
		return nil, err
	}
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	if !order.PaymentMethod.IsDeferred() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func voidedConflict(order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be paid").
		WithDetails(map[string]string{"status": string(order.Status)})
}
