package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memorySessionClient struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	saveErr error
}

func newMemorySessionClient() *memorySessionClient {
	return &memorySessionClient{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memorySessionClient) SaveCartSession(_ context.Context, id string, payload []byte, ttl time.Duration) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[id] = append([]byte(nil), payload...)
	m.ttls[id] = ttl
	return nil
}

func (m *memorySessionClient) LoadCartSession(_ context.Context, id string) ([]byte, bool, error) {
	payload, ok := m.data[id]
	return payload, ok, nil
}

func (m *memorySessionClient) DeleteCartSession(_ context.Context, id string) error {
	delete(m.data, id)
	return nil
}

type failingAccounts struct{}

func (failingAccounts) WithTx(*gorm.DB) AccountRepository { return failingAccounts{} }
func (failingAccounts) FindByUser(context.Context, string) (*models.AccountCart, error) {
	return nil, errors.New("db down")
}
func (failingAccounts) Upsert(context.Context, *models.AccountCart) error {
	return errors.New("db down")
}

type testHarness struct {
	svc      Service
	sessions *memorySessionClient
	accounts *Repository
}

func newHarness(t *testing.T) testHarness {
	t.Helper()
	client := newMemorySessionClient()
	store, err := NewRedisSessionStore(client, time.Hour)
	require.NoError(t, err)
	accounts := NewRepository(dbtest.Open(t))
	svc, err := NewService(store, accounts, testCatalog(), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return testHarness{svc: svc, sessions: client, accounts: accounts}
}

func TestServiceGuestCartLivesInSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.svc.Add(ctx, access.Guest(), "sess-1", AddInput{ProductID: "flat", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalQty)
	assert.Equal(t, time.Hour, h.sessions.ttls["sess-1"])

	var stored Cart
	require.NoError(t, json.Unmarshal(h.sessions.data["sess-1"], &stored))
	assert.Equal(t, 2, stored.TotalQty)

	reloaded, err := h.svc.Get(ctx, access.Guest(), "sess-1")
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, c.TotalQty, reloaded.TotalQty)
	assert.True(t, c.TotalAmount.Equal(reloaded.TotalAmount))

	other, err := h.svc.Get(ctx, access.Guest(), "sess-2")
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}

func TestServiceMirrorsCustomerCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := access.Customer("user-1", "u@example.com")

	_, err := h.svc.Add(ctx, customer, "sess-1", AddInput{ProductID: "sized", Size: "M", Quantity: 1})
	require.NoError(t, err)

	record, err := h.accounts.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Len(t, record.Items, 1)
	assert.Equal(t, "M", record.Items[0].Size)

	_, err = h.svc.Clear(ctx, customer, "sess-1")
	require.NoError(t, err)
	record, err = h.accounts.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, record.Items)
	assert.Equal(t, 0, record.TotalQty)
}

func TestServiceMirrorFailureIsNotSurfaced(t *testing.T) {
	store, err := NewRedisSessionStore(newMemorySessionClient(), time.Hour)
	require.NoError(t, err)
	svc, err := NewService(store, failingAccounts{}, testCatalog(), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	c, err := svc.Add(context.Background(), access.Customer("user-1", ""), "sess", AddInput{ProductID: "flat", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalQty)
}

func TestServiceSessionSaveFailure(t *testing.T) {
	h := newHarness(t)
	h.sessions.saveErr = errors.New("redis down")

	_, err := h.svc.Add(context.Background(), access.Guest(), "sess", AddInput{ProductID: "flat", Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestServiceMergeAtLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := access.Customer("user-1", "u@example.com")

	_, err := h.svc.Add(ctx, customer, "old-device", AddInput{ProductID: "flat", Quantity: 2})
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, access.Guest(), "new-device", AddInput{ProductID: "flat", Quantity: 2})
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, access.Guest(), "new-device", AddInput{ProductID: "sized", Size: "L", Quantity: 1})
	require.NoError(t, err)

	merged, err := h.svc.MergeAtLogin(ctx, customer, "new-device")
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 3, merged.Items[0].Quantity)
	assert.Equal(t, 4, merged.TotalQty)

	record, err := h.accounts.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, record.TotalQty)

	_, err = h.svc.MergeAtLogin(ctx, access.Guest(), "new-device")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceRemoveLinesAndAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guest := access.Guest()

	_, err := h.svc.Add(ctx, guest, "s", AddInput{ProductID: "flat", Quantity: 1})
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, guest, "s", AddInput{ProductID: "sized", Size: "M", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, h.svc.RemoveLines(ctx, guest, "s", []LineKey{{ProductID: "flat"}}))
	c, err := h.svc.Get(ctx, guest, "s")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "sized", c.Items[0].ProductID)

	_, err = h.svc.Get(ctx, access.Operator("op"), "s")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.Get(ctx, guest, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceRemoveReportsWhetherLineExisted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guest := access.Guest()

	_, err := h.svc.Add(ctx, guest, "s", AddInput{ProductID: "sized", Size: "M", Quantity: 2})
	require.NoError(t, err)

	c, removed, err := h.svc.Remove(ctx, guest, "s", LineKey{ProductID: "sized", Size: "L"})
	require.NoError(t, err)
	assert.False(t, removed, "a different size is a different line")
	assert.Equal(t, 2, c.TotalQty)

	c, removed, err = h.svc.Remove(ctx, guest, "s", LineKey{ProductID: "sized", Size: "M"})
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, c.TotalQty)
	assert.True(t, c.TotalAmount.IsZero())

	_, removed, err = h.svc.Remove(ctx, guest, "s", LineKey{ProductID: "sized", Size: "M"})
	require.NoError(t, err)
	assert.False(t, removed)
}
