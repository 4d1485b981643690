package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderPlacer struct {
	mock.Mock
}

func (m *MockOrderPlacer) PlaceOrder(ctx context.Context, o domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type MockSearchEmitter struct {
	mock.Mock
}

func (m *MockSearchEmitter) EmitSearch(ctx context.Context, e domain.SearchEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

var validForm = domain.CheckoutForm{
	Name:    "Ann",
	Email:   "ann@example.com",
	Address: "221B Baker Street",
	Card:    "4242 4242 4242 4242",
	Agree:   true,
}

func testCatalog(t *testing.T) domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog([]domain.Product{
		{
			ID: "1", Name: "Stride Runner", Brand: "Velocity", Category: "Running",
			Price: decimal.RequireFromString("89.99"), Rating: 4.6, Reviews: 212,
			Colors: []string{"#000000", "#E11D48"}, Stock: 2,
		},
		{
			ID: "2", Name: "Trail Blazer", Brand: "Summit", Category: "Trail",
			Price: decimal.RequireFromString("129.00"), Rating: 4.8, Reviews: 98,
			Colors: []string{"#14532D"}, Stock: 5,
		},
		{
			ID: "3", Name: "Court Classic", Brand: "Velocity", Category: "Lifestyle",
			Price: decimal.RequireFromString("64.50"), Rating: 4.1, Reviews: 40,
			Colors: []string{"#FFFFFF"}, Stock: 0,
		},
	})
	require.NoError(t, err)
	return c
}

func newTestService(
	t *testing.T, store *recordingStore, placer *MockOrderPlacer,
) *service.Service {
	t.Helper()
	var p port.OrderPlacer
	if placer != nil {
		p = placer
	}
	return service.New(
		testCatalog(t), store, p, nil,
		service.ClockOpt(func() time.Time { return fixedNow }),
		service.OrderIDOpt(func() string { return "order-1" }),
	)
}

func TestServiceAddToCart(t *testing.T) {
	t.Run("DefaultColor", func(t *testing.T) {
		svc := newTestService(t, newRecordingStore(), nil)

		sum, err := svc.AddToCart(t.Context(), "s1", "1", "")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, "#000000", sum.Lines[0].Color)
		assert.Equal(t, 1, sum.ItemCount)
		assert.Equal(t, "89.99", sum.Subtotal.StringFixed(2))
	})

	t.Run("CapsAtStock", func(t *testing.T) {
		svc := newTestService(t, newRecordingStore(), nil)

		for range 5 {
			_, err := svc.AddToCart(t.Context(), "s1", "1", "#E11D48")
			require.NoError(t, err)
		}
		sum, err := svc.Cart(t.Context(), "s1")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, 2, sum.Lines[0].Quantity)
	})

	t.Run("Errors", func(t *testing.T) {
		cases := []struct {
			name      string
			session   string
			productID string
			color     string
			want      error
		}{
			{"UnknownProduct", "s1", "404", "", domain.ErrProductNotFound},
			{"UnknownColor", "s1", "1", "#123456", domain.ErrUnknownColor},
			{"OutOfStock", "s1", "3", "", domain.ErrOutOfStock},
			{"BlankSession", " ", "1", "", service.ErrInvalidSession},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				store := newRecordingStore()
				svc := newTestService(t, store, nil)

				_, err := svc.AddToCart(t.Context(), tc.session, tc.productID, tc.color)
				require.ErrorIs(t, err, tc.want)
				assert.Zero(t, store.Puts())
			})
		}
	})
}

func TestServiceSavesOncePerMutation(t *testing.T) {
	store := newRecordingStore()
	svc := newTestService(t, store, nil)
	ctx := t.Context()

	steps := []func() error{
		func() error { _, err := svc.AddToCart(ctx, "s1", "1", ""); return err },
		func() error { _, err := svc.AddToCart(ctx, "s1", "2", ""); return err },
		func() error { _, err := svc.ChangeQuantity(ctx, "s1", "1", "#000000", 1); return err },
		func() error { _, err := svc.ChangeQuantity(ctx, "s1", "9", "#000000", 1); return err },
		func() error { _, err := svc.RemoveLine(ctx, "s1", "2", "#14532D"); return err },
		func() error { _, err := svc.ClearCart(ctx, "s1"); return err },
	}
	for i, step := range steps {
		require.NoError(t, step())
		assert.Equal(t, i+1, store.Puts(), "after step %d", i)
	}

	_, err := svc.Products(ctx, "s1", domain.DefaultCriteria())
	require.NoError(t, err)
	_, err = svc.OpenCart(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, len(steps), store.Puts())
}

func TestServiceRestoresSavedCart(t *testing.T) {
	store := newRecordingStore()
	first := newTestService(t, store, nil)

	_, err := first.AddToCart(t.Context(), "s1", "1", "#E11D48")
	require.NoError(t, err)
	_, err = first.AddToCart(t.Context(), "s1", "1", "#E11D48")
	require.NoError(t, err)

	second := newTestService(t, store, nil)
	sum, err := second.Cart(t.Context(), "s1")
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)
	assert.Equal(t, 2, sum.Lines[0].Quantity)
	assert.Equal(t, domain.StateIdle, sum.State)

	other, err := second.Cart(t.Context(), "s2")
	require.NoError(t, err)
	assert.Empty(t, other.Lines)
}

func TestServiceCorruptSavedCart(t *testing.T) {
	store := newRecordingStore()
	require.NoError(t, store.MemoryStore.Put(
		t.Context(), service.CartSlotKey("s1"), []byte(`[{"id":"1","qty":"x"}]`),
	))
	svc := newTestService(t, store, nil)

	sum, err := svc.Cart(t.Context(), "s1")
	require.NoError(t, err)
	assert.Empty(t, sum.Lines)

	_, err = svc.AddToCart(t.Context(), "s1", "2", "")
	require.NoError(t, err)

	data, err := store.Get(t.Context(), service.CartSlotKey("s1"))
	require.NoError(t, err)
	cart, err := service.DecodeCart(data)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Len())
}

func TestServiceProducts(t *testing.T) {
	emitter := new(MockSearchEmitter)
	svc := service.New(
		testCatalog(t), newRecordingStore(), nil, emitter,
		service.ClockOpt(func() time.Time { return fixedNow }),
	)
	criteria := domain.FilterCriteria{
		Category: domain.AllOption,
		Brand:    "Velocity",
		Sort:     domain.SortPriceAsc,
	}

	emitter.On("EmitSearch", mock.Anything, domain.SearchEvent{
		SessionID:  "s1",
		Criteria:   criteria,
		Results:    2,
		SearchedAt: fixedNow,
	}).Return(errors.New("broker unavailable")).Once()

	ps, err := svc.Products(t.Context(), "s1", criteria)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "3", ps[0].ID)
	assert.Equal(t, "1", ps[1].ID)

	got, err := svc.Criteria(t.Context(), "s1")
	require.NoError(t, err)
	assert.Equal(t, criteria, got)

	fresh, err := svc.Criteria(t.Context(), "s2")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCriteria(), fresh)

	emitter.AssertExpectations(t)
}

func TestServiceFacets(t *testing.T) {
	svc := newTestService(t, newRecordingStore(), nil)

	categories, brands := svc.Facets()
	assert.Equal(t, []string{"All", "Running", "Trail", "Lifestyle"}, categories)
	assert.Equal(t, []string{"All", "Velocity", "Summit"}, brands)
}

func TestServiceCheckout(t *testing.T) {
	t.Run("Completes", func(t *testing.T) {
		store := newRecordingStore()
		placer := new(MockOrderPlacer)
		svc := newTestService(t, store, placer)
		ctx := t.Context()

		_, err := svc.AddToCart(ctx, "s1", "1", "")
		require.NoError(t, err)
		_, err = svc.AddToCart(ctx, "s1", "2", "")
		require.NoError(t, err)

		state, err := svc.OpenCart(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateOpen, state)
		state, err = svc.BeginCheckout(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateCheckingOut, state)

		placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(o domain.Order) bool {
			return o.ID == "order-1" &&
				o.SessionID == "s1" &&
				o.CardLast4 == "4242" &&
				o.Customer.Email == "ann@example.com" &&
				len(o.Lines) == 2 &&
				o.Subtotal.Equal(decimal.RequireFromString("218.99")) &&
				o.PlacedAt.Equal(fixedNow)
		})).Return(nil).Once()

		order, err := svc.SubmitCheckout(ctx, "s1", validForm)
		require.NoError(t, err)
		assert.Equal(t, "order-1", order.ID)
		assert.Equal(t, 2, order.ItemCount())

		sum, err := svc.Cart(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, sum.Lines)
		assert.True(t, sum.Subtotal.IsZero())
		assert.Equal(t, domain.StateIdle, sum.State)

		data, err := store.Get(ctx, service.CartSlotKey("s1"))
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
		placer.AssertExpectations(t)
	})

	t.Run("InvalidFormKeepsState", func(t *testing.T) {
		store := newRecordingStore()
		placer := new(MockOrderPlacer)
		svc := newTestService(t, store, placer)
		ctx := t.Context()

		_, err := svc.AddToCart(ctx, "s1", "2", "")
		require.NoError(t, err)
		_, err = svc.OpenCart(ctx, "s1")
		require.NoError(t, err)
		_, err = svc.BeginCheckout(ctx, "s1")
		require.NoError(t, err)
		puts := store.Puts()

		form := validForm
		form.Email = "not-an-email"
		form.Agree = false
		_, err = svc.SubmitCheckout(ctx, "s1", form)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, []domain.Field{domain.FieldAgree, domain.FieldEmail}, verr.Fields.Fields())

		sum, err := svc.Cart(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, sum.Lines, 1)
		assert.Equal(t, domain.StateCheckingOut, sum.State)
		assert.Equal(t, puts, store.Puts())
		placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	})

	t.Run("PlacementFailureKeepsCart", func(t *testing.T) {
		placer := new(MockOrderPlacer)
		svc := newTestService(t, newRecordingStore(), placer)
		ctx := t.Context()

		_, err := svc.AddToCart(ctx, "s1", "2", "")
		require.NoError(t, err)
		_, err = svc.OpenCart(ctx, "s1")
		require.NoError(t, err)
		_, err = svc.BeginCheckout(ctx, "s1")
		require.NoError(t, err)

		placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(errors.New("produce timeout")).Once()

		_, err = svc.SubmitCheckout(ctx, "s1", validForm)
		require.ErrorIs(t, err, service.ErrOrderPlacement)

		sum, err := svc.Cart(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, sum.Lines, 1)
		assert.Equal(t, domain.StateCheckingOut, sum.State)
		placer.AssertExpectations(t)
	})

	t.Run("BeginWithEmptyCart", func(t *testing.T) {
		svc := newTestService(t, newRecordingStore(), nil)
		ctx := t.Context()

		_, err := svc.OpenCart(ctx, "s1")
		require.NoError(t, err)
		state, err := svc.BeginCheckout(ctx, "s1")
		require.ErrorIs(t, err, domain.ErrEmptyCart)
		assert.Equal(t, domain.StateOpen, state)
	})

	t.Run("SubmitOutsideCheckout", func(t *testing.T) {
		svc := newTestService(t, newRecordingStore(), nil)

		_, err := svc.SubmitCheckout(t.Context(), "s1", validForm)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("SubmitAfterCartEmptied", func(t *testing.T) {
		svc := newTestService(t, newRecordingStore(), nil)
		ctx := t.Context()

		_, err := svc.AddToCart(ctx, "s1", "2", "")
		require.NoError(t, err)
		_, err = svc.OpenCart(ctx, "s1")
		require.NoError(t, err)
		_, err = svc.BeginCheckout(ctx, "s1")
		require.NoError(t, err)
		_, err = svc.ClearCart(ctx, "s1")
		require.NoError(t, err)

		_, err = svc.SubmitCheckout(ctx, "s1", validForm)
		require.ErrorIs(t, err, domain.ErrEmptyCart)
	})

	t.Run("CancelAndClose", func(t *testing.T) {
		svc := newTestService(t, newRecordingStore(), nil)
		ctx := t.Context()

		_, err := svc.AddToCart(ctx, "s1", "2", "")
		require.NoError(t, err)
		_, err = svc.OpenCart(ctx, "s1")
		require.NoError(t, err)
		_, err = svc.BeginCheckout(ctx, "s1")
		require.NoError(t, err)

		state, err := svc.CancelCheckout(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateOpen, state)

		_, err = svc.CancelCheckout(ctx, "s1")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)

		state, err = svc.CloseCart(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateIdle, state)
	})
}

func TestServiceConcurrentSessions(t *testing.T) {
	store := newRecordingStore()
	svc := newTestService(t, store, nil)
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for range 10 {
				_, err := svc.AddToCart(ctx, id, "2", "")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for i := range 8 {
		sum, err := svc.Cart(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, 5, sum.Lines[0].Quantity)
	}
	assert.Equal(t, 80, store.Puts())
}

// blockingStore holds reads of one slot until release is closed.
type blockingStore struct {
	*recordingStore
	key     string
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore(key string) *blockingStore {
	return &blockingStore{
		recordingStore: newRecordingStore(),
		key:            key,
		entered:        make(chan struct{}, 8),
		release:        make(chan struct{}),
	}
}

func (s *blockingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == s.key {
		s.entered <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.recordingStore.Get(ctx, key)
}

func waitEntered(t *testing.T, s *blockingStore) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(time.Second):
		t.Fatal("store read did not start")
	}
}

func TestServiceSessionRestore(t *testing.T) {
	t.Run("SlowReadDoesNotBlockOtherSessions", func(t *testing.T) {
		store := newBlockingStore(service.CartSlotKey("slow"))
		svc := service.New(testCatalog(t), store, nil, nil)
		ctx := t.Context()

		slowDone := make(chan error, 1)
		go func() {
			_, err := svc.Cart(ctx, "slow")
			slowDone <- err
		}()
		waitEntered(t, store)

		fastDone := make(chan error, 1)
		go func() {
			_, err := svc.AddToCart(ctx, "fast", "2", "")
			fastDone <- err
		}()

		select {
		case err := <-fastDone:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("session waited for another session's store read")
		}

		close(store.release)
		require.NoError(t, <-slowDone)
	})

	t.Run("ConcurrentRestoreSharesSession", func(t *testing.T) {
		store := newBlockingStore(service.CartSlotKey("s1"))
		svc := service.New(testCatalog(t), store, nil, nil)
		ctx := t.Context()

		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddToCart(ctx, "s1", "2", "")
				assert.NoError(t, err)
			}()
		}
		waitEntered(t, store)
		waitEntered(t, store)
		close(store.release)
		wg.Wait()

		sum, err := svc.Cart(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, 2, sum.Lines[0].Quantity)
	})
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestServiceIdleSessions(t *testing.T) {
	saved := `[{"id":"2","name":"Trail Blazer","price":129,"color":"#14532D",` +
		`"image":"","qty":3,"stock":5}]`

	t.Run("EvictedAndReloaded", func(t *testing.T) {
		store := newRecordingStore()
		clock := &testClock{now: fixedNow}
		svc := service.New(testCatalog(t), store, nil, nil,
			service.ClockOpt(clock.Now),
			service.SessionIdleOpt(10*time.Minute),
		)
		ctx := t.Context()

		_, err := svc.AddToCart(ctx, "s1", "1", "")
		require.NoError(t, err)
		require.Equal(t, 1, store.Gets())

		// Replace the saved cart behind the live session.
		require.NoError(t, store.MemoryStore.Put(ctx, service.CartSlotKey("s1"), []byte(saved)))

		clock.Advance(6 * time.Minute)
		sum, err := svc.Cart(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, "1", sum.Lines[0].ProductID)
		assert.Equal(t, 1, store.Gets())

		clock.Advance(11 * time.Minute)
		sum, err = svc.Cart(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, "2", sum.Lines[0].ProductID)
		assert.Equal(t, 3, sum.Lines[0].Quantity)
		assert.Equal(t, 2, store.Gets())
	})

	t.Run("ZeroTTLKeepsSessions", func(t *testing.T) {
		store := newRecordingStore()
		clock := &testClock{now: fixedNow}
		svc := service.New(testCatalog(t), store, nil, nil,
			service.ClockOpt(clock.Now),
		)
		ctx := t.Context()

		_, err := svc.AddToCart(ctx, "s1", "1", "")
		require.NoError(t, err)
		require.NoError(t, store.MemoryStore.Put(ctx, service.CartSlotKey("s1"), []byte(saved)))

		clock.Advance(48 * time.Hour)
		sum, err := svc.Cart(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, "1", sum.Lines[0].ProductID)
		assert.Equal(t, 1, store.Gets())
	})
}
