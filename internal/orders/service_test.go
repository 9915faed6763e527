package orders

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	svc    Service
	repo   Repository
	db     *gorm.DB
	events *outbox.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	events := outbox.NewRepository(client.DB())
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, client, outbox.NewService(events, logg), nil, logg)
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, db: client.DB(), events: events}
}

func seedOrder(t *testing.T, repo Repository, userID string, status enums.OrderStatus, payment enums.PaymentStatus, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderID:       uuid.NewString(),
		UserID:        userID,
		Email:         userID + "@example.com",
		TotalQty:      2,
		TotalAmount:   decimal.RequireFromString("39.98"),
		Shipping:      types.ShippingAddress{FullName: "Ana Cruz", AddressLine1: "1 Main St", City: "Cebu", Region: "VII", PostalCode: "6000", Phone: "09171234567"},
		Status:        status,
		PaymentMethod: enums.PaymentMethodGCash,
		PaymentStatus: payment,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		Items: []models.OrderItem{{
			ID:        uuid.New(),
			ProductID: "sku-1",
			Name:      "Runner",
			Price:     decimal.RequireFromString("19.99"),
			Quantity:  2,
			Subtotal:  decimal.RequireFromString("39.98"),
		}},
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestSetStatusMarkPaidEmitsEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f.repo, "user-1", enums.OrderStatusToPay, enums.PaymentStatusPending, time.Now().UTC())

	got, err := f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "paid")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusToShip, got.Status)
	assert.Equal(t, enums.PaymentStatusPaid, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)
	require.Len(t, got.Items, 1)

	rows, err := f.events.ListByAggregate(nil, order.OrderID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, enums.EventOrderStatusChanged, rows[0].EventType)
	assert.Equal(t, enums.EventOrderPaid, rows[1].EventType)

	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[1].Payload, &env))
	require.NotNil(t, env.Actor)
	assert.Equal(t, "op-1", env.Actor.UserID)

	firstPaidAt := *got.PaidAt
	again, err := f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "paid")
	require.NoError(t, err)
	require.NotNil(t, again.PaidAt)
	assert.True(t, firstPaidAt.Equal(*again.PaidAt))

	rows, err = f.events.ListByAggregate(nil, order.OrderID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSetStatusCancelVoidsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f.repo, "user-1", enums.OrderStatusToPay, enums.PaymentStatusPending, time.Now().UTC())
	_, err := f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "paid")
	require.NoError(t, err)

	got, err := f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, got.PaymentStatus)
	assert.Nil(t, got.PaidAt)

	_, err = f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "to_ship")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "paid")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestSetStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f.repo, "user-1", enums.OrderStatusToReceive, enums.PaymentStatusPaid, time.Now().UTC())

	_, err := f.svc.SetStatus(ctx, access.Customer("user-1", "u@example.com"), order.OrderID, "completed")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.SetStatus(ctx, access.Operator("op-1"), "missing", "completed")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "bogus")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.NotNil(t, pkgerrors.As(err).Details())

	_, err = f.svc.SetStatus(ctx, access.Operator("op-1"), order.OrderID, "to_pay")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	stored, err := f.repo.FindByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusToReceive, stored.Status)
}

func TestListOrdersFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedOrder(t, f.repo, "user-1", enums.OrderStatusToShip, enums.PaymentStatusPaid, base.Add(time.Duration(i)*time.Hour))
	}
	seedOrder(t, f.repo, "user-2", enums.OrderStatusCompleted, enums.PaymentStatusPaid, base.Add(5*time.Hour))
	op := access.Operator("op-1")

	page, err := f.svc.ListOrders(ctx, op, ListFilter{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, enums.OrderStatusCompleted, page.Items[0].Status)
	require.NotEmpty(t, page.NextCursor)

	next, err := f.svc.ListOrders(ctx, op, ListFilter{Pagination: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, next.Items, 2)
	assert.Empty(t, next.NextCursor)
	assert.True(t, next.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))

	status := enums.OrderStatusToShip
	from := base.Add(30 * time.Minute)
	filtered, err := f.svc.ListOrders(ctx, op, ListFilter{Status: &status, From: &from})
	require.NoError(t, err)
	assert.Len(t, filtered.Items, 2)

	_, err = f.svc.ListOrders(ctx, op, ListFilter{Pagination: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	to := base.Add(-time.Hour)
	_, err = f.svc.ListOrders(ctx, op, ListFilter{From: &from, To: &to})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	for query, want := range map[string]int{
		"from=2026-03-01&to=2026-03-01": 4,
		"from=2026-02-28&to=2026-02-28": 0,
		"to=2026-03-01":                 4,
		"from=2026-03-02":               0,
	} {
		req := httptest.NewRequest("GET", "/api/admin/orders?"+query, nil)
		dayFrom, err := validators.ParseQueryTime(req, "from")
		require.NoError(t, err)
		dayTo, err := validators.ParseQueryEndTime(req, "to")
		require.NoError(t, err)
		got, err := f.svc.ListOrders(ctx, op, ListFilter{From: dayFrom, To: dayTo})
		require.NoError(t, err, query)
		assert.Len(t, got.Items, want, query)
	}
}

func TestCustomerOrderViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mine := seedOrder(t, f.repo, "user-1", enums.OrderStatusToShip, enums.PaymentStatusPaid, now)
	theirs := seedOrder(t, f.repo, "user-2", enums.OrderStatusToShip, enums.PaymentStatusPaid, now)
	customer := access.Customer("user-1", "user-1@example.com")

	page, err := f.svc.ListMyOrders(ctx, customer, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine.OrderID, page.Items[0].OrderID)

	got, err := f.svc.GetMyOrder(ctx, customer, mine.OrderID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("39.98")))

	_, err = f.svc.GetMyOrder(ctx, customer, theirs.OrderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ListMyOrders(ctx, access.Guest(), pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.GetOrder(ctx, customer, theirs.OrderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	viewed, err := f.svc.GetOrder(ctx, access.Operator("op-1"), theirs.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "user-2", viewed.UserID)
}

func TestConfirmPaymentRepoAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f.repo, "user-1", enums.OrderStatusToPay, enums.PaymentStatusPending, time.Now().UTC())
	first := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	applied, err := f.repo.ConfirmPayment(ctx, order.OrderID, first)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.repo.ConfirmPayment(ctx, order.OrderID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := f.repo.FindByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusToShip, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.True(t, stored.PaidAt.Equal(first))

	cancelled := seedOrder(t, f.repo, "user-1", enums.OrderStatusCancelled, enums.PaymentStatusUnpaid, time.Now().UTC())
	applied, err = f.repo.ConfirmPayment(ctx, cancelled.OrderID, first)
	require.NoError(t, err)
	assert.False(t, applied)
}
