package service_test

import (
	"testing"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(t *testing.T) domain.Order {
	t.Helper()
	cart := sampleCart(t)
	return domain.NewOrder("order-1", "s1", validForm, &cart, fixedNow)
}

func TestOrderLedger(t *testing.T) {
	t.Run("PlaceAndFind", func(t *testing.T) {
		ledger := service.NewOrderLedger(newRecordingStore(), retry.RetryConfig{})
		want := sampleOrder(t)

		require.NoError(t, ledger.PlaceOrder(t.Context(), want))

		got, err := ledger.Order(t.Context(), "order-1")
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.SessionID, got.SessionID)
		assert.Equal(t, want.Customer, got.Customer)
		assert.Equal(t, "4242", got.CardLast4)
		assert.True(t, want.Subtotal.Equal(got.Subtotal))
		assert.True(t, want.PlacedAt.Equal(got.PlacedAt))
		require.Len(t, got.Lines, 2)
		assert.Equal(t, 2, got.Lines[0].Quantity)
		assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.RequireFromString("89.99")))
		assert.Equal(t, want.ItemCount(), got.ItemCount())
	})

	t.Run("RecordIsIdempotent", func(t *testing.T) {
		store := newRecordingStore()
		ledger := service.NewOrderLedger(store, retry.RetryConfig{})
		o := sampleOrder(t)

		require.NoError(t, ledger.RecordOrders(t.Context(), []domain.Order{o, o}))

		first, err := store.Get(t.Context(), service.OrderSlotKey(o.ID))
		require.NoError(t, err)
		require.NoError(t, ledger.RecordOrders(t.Context(), []domain.Order{o}))
		second, err := store.Get(t.Context(), service.OrderSlotKey(o.ID))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("NotFound", func(t *testing.T) {
		ledger := service.NewOrderLedger(newRecordingStore(), retry.RetryConfig{})

		_, err := ledger.Order(t.Context(), "missing")
		require.ErrorIs(t, err, service.ErrOrderNotFound)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		store := newRecordingStore()
		store.failPuts = 5
		ledger := service.NewOrderLedger(store, retry.RetryConfig{
			MaxAttempts: 2,
			Backoff:     retry.LinearBackoff(0),
		})

		err := ledger.PlaceOrder(t.Context(), sampleOrder(t))
		require.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, 2, store.Puts())
	})
}
