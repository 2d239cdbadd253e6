package orderstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/kv"
	"github.com/shoplite/cartkit/telemetry"
)

func testOrder(id string) *domain.Order {
	return &domain.Order{
		ID:            id,
		SessionID:     "sess-" + id,
		Lines:         []domain.CartLine{{ProductID: "p1", SellerID: "s1", UnitPrice: 50000, Quantity: 1}},
		Method:        domain.PaymentCOD,
		PaymentStatus: domain.PaymentVerified,
		Status:        domain.OrderConfirmed,
		CreatedAt:     time.Now(),
	}
}

func TestAppendAndGet(t *testing.T) {
	store := Open(context.Background(), kv.NewMemoryStore(), telemetry.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testOrder("o-1")))

	got, err := store.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-o-1", got.SessionID)

	_, err = store.GetByID(ctx, "o-2")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAppend_RejectsDuplicateID(t *testing.T) {
	store := Open(context.Background(), kv.NewMemoryStore(), telemetry.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testOrder("o-1")))
	assert.ErrorIs(t, store.Append(ctx, testOrder("o-1")), ErrDuplicateOrder)
	assert.Len(t, store.List(ctx), 1)
}

func TestAppend_RejectsMissingID(t *testing.T) {
	store := Open(context.Background(), kv.NewMemoryStore(), telemetry.NewLogger())
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, testOrder("")), ErrInvalidOrder)
	assert.Empty(t, store.List(ctx))
}

func TestList_NewestFirst(t *testing.T) {
	store := Open(context.Background(), kv.NewMemoryStore(), telemetry.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testOrder("o-1")))
	require.NoError(t, store.Append(ctx, testOrder("o-2")))

	orders := store.List(ctx)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-2", orders[0].ID)
	assert.Equal(t, "o-1", orders[1].ID)
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	store := Open(context.Background(), kv.NewMemoryStore(), telemetry.NewLogger())
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, testOrder("o-1")))

	changed, err := store.UpdateStatus(ctx, "o-1", domain.OrderPacking)
	require.NoError(t, err)
	assert.True(t, changed)

	// An out-of-order event arriving late is a no-op, not an error.
	changed, err = store.UpdateStatus(ctx, "o-1", domain.OrderConfirmed)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := store.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPacking, got.Status)

	_, err = store.UpdateStatus(ctx, "missing", domain.OrderShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSetPaymentStatus_NoRegressionFromVerified(t *testing.T) {
	store := Open(context.Background(), kv.NewMemoryStore(), telemetry.NewLogger())
	ctx := context.Background()

	order := testOrder("o-1")
	order.PaymentStatus = domain.PaymentPending
	require.NoError(t, store.Append(ctx, order))

	changed, err := store.SetPaymentStatus(ctx, "o-1", domain.PaymentVerified, "")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.SetPaymentStatus(ctx, "o-1", domain.PaymentFailed, "late abort")
	require.NoError(t, err)
	assert.False(t, changed, "a verified payment never regresses")
}

func TestOpen_HydratesFromCache(t *testing.T) {
	cache := kv.NewMemoryStore()
	ctx := context.Background()

	first := Open(ctx, cache, telemetry.NewLogger())
	require.NoError(t, first.Append(ctx, testOrder("o-1")))
	_, err := first.UpdateStatus(ctx, "o-1", domain.OrderShipped)
	require.NoError(t, err)

	second := Open(ctx, cache, telemetry.NewLogger())
	got, err := second.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, got.Status)
}

func TestOpen_MalformedLedgerStartsEmpty(t *testing.T) {
	cache := kv.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, kv.KeyOrders, []byte(`{broken`)))

	store := Open(ctx, cache, telemetry.NewLogger())
	assert.Empty(t, store.List(ctx))
}

func TestGetByID_ReturnsACopy(t *testing.T) {
	store := Open(context.Background(), kv.NewMemoryStore(), telemetry.NewLogger())
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, testOrder("o-1")))

	got, err := store.GetByID(ctx, "o-1")
	require.NoError(t, err)
	got.Status = domain.OrderDelivered

	again, err := store.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, again.Status)
}
