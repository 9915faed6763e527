package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestEmitWritesEnvelopeInTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   "order-1",
			Actor:         &ActorRef{UserID: "user-1", Role: "customer"},
			Data:          map[string]string{"orderId": "order-1"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(nil, "order-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, CurrentVersion, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "user-1", env.Actor.UserID)
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(env.Data))
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   "order-2",
			Data:          map[string]int{"totalQty": 1},
		}); err != nil {
			return err
		}
		return errors.New("checkout failed later")
	})
	require.Error(t, err)

	rows, err := repo.ListByAggregate(nil, "order-2")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPaid, AggregateID: "x"}))

	conn := dbtest.Open(t)
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope", AggregateID: "x"}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Emit(ctx, conn, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Data:          map[string]string{"orderId": id},
		}))
	}

	batch, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, batch[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, batch[1].ID, errors.New("broker down")))
	require.NoError(t, repo.MarkTerminalTx(conn, batch[2].ID, errors.New("poison")))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, batch[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "broker down", *pending[0].LastError)

	// rows that exhausted their attempts are no longer fetched
	pending, err = repo.FetchUnpublishedForPublish(conn, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, pending)

	deleted, err := repo.DeletePublishedBefore(conn, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func TestNewEnvelopeDescribesItself(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("PHT", 8*3600))
	env, err := NewEnvelope(DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   "order-9",
		Data:          map[string]string{"status": "to_ship"},
		OccurredAt:    at,
	})
	require.NoError(t, err)
	assert.Equal(t, string(enums.EventOrderStatusChanged), env.EventType)
	assert.Equal(t, "order-9", env.AggregateID)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.True(t, at.Equal(env.OccurredAt))

	var data map[string]string
	require.NoError(t, env.DecodeData(&data))
	assert.Equal(t, "to_ship", data["status"])
}

func TestNewEnvelopeRejectsUnknownAggregate(t *testing.T) {
	_, err := NewEnvelope(DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: "wishlist",
		AggregateID:   "x",
	})
	require.Error(t, err)

	var empty PayloadEnvelope
	assert.ErrorIs(t, empty.DecodeData(&map[string]any{}), ErrEmptyPayload)
}

func TestTruncateErrorKeepsRunesWhole(t *testing.T) {
	assert.Empty(t, truncateError(nil))
	assert.Equal(t, "broker down", truncateError(errors.New("broker down")))

	// a two-byte rune straddles the limit
	msg := strings.Repeat("a", maxLastErrorLen-1) + "ñ" + "tail"
	got := truncateError(errors.New(msg))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxLastErrorLen-1), got)

	got = truncateError(errors.New("bad \xff byte"))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "bad  byte", got)
}

func TestMarkFailedStoresLongMultibyteError(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	require.NoError(t, NewService(repo, nil).Emit(ctx, conn, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   "o-1",
		Data:          map[string]string{"orderId": "o-1"},
	}))
	batch, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, repo.MarkFailedTx(conn, batch[0].ID, errors.New(strings.Repeat("é", maxLastErrorLen))))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].LastError)
	assert.True(t, utf8.ValidString(*pending[0].LastError))
	assert.LessOrEqual(t, len(*pending[0].LastError), maxLastErrorLen)
}
