package port

import (
	"context"
	"errors"

	"github.com/niksmo/storefront/internal/core/domain"
)

// ErrSlotNotFound is wrapped by [SlotStore] implementations for a missing
// slot.
var ErrSlotNotFound = errors.New("slot not found")

// A SlotStore is a durable key-value store holding one serialized value per
// slot key.
type SlotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

type OrderPlacer interface {
	PlaceOrder(context.Context, domain.Order) error
}

// An OrdersRecorder keeps placed orders for later lookup.
type OrdersRecorder interface {
	RecordOrders(context.Context, []domain.Order) error
}

type SearchEventEmitter interface {
	EmitSearch(context.Context, domain.SearchEvent) error
}

type CatalogBrowser interface {
	Products(ctx context.Context, sessionID string, c domain.FilterCriteria) ([]domain.Product, error)
	Criteria(ctx context.Context, sessionID string) (domain.FilterCriteria, error)
	Facets() (categories, brands []string)
}

type CartManager interface {
	Cart(ctx context.Context, sessionID string) (domain.CartSummary, error)
	AddToCart(ctx context.Context, sessionID, productID, color string) (domain.CartSummary, error)
	ChangeQuantity(ctx context.Context, sessionID, productID, color string, delta int) (domain.CartSummary, error)
	RemoveLine(ctx context.Context, sessionID, productID, color string) (domain.CartSummary, error)
	ClearCart(ctx context.Context, sessionID string) (domain.CartSummary, error)
}

type CheckoutManager interface {
	OpenCart(ctx context.Context, sessionID string) (domain.CheckoutState, error)
	CloseCart(ctx context.Context, sessionID string) (domain.CheckoutState, error)
	BeginCheckout(ctx context.Context, sessionID string) (domain.CheckoutState, error)
	CancelCheckout(ctx context.Context, sessionID string) (domain.CheckoutState, error)
	SubmitCheckout(ctx context.Context, sessionID string, f domain.CheckoutForm) (domain.Order, error)
}

type OrderFinder interface {
	Order(ctx context.Context, orderID string) (domain.Order, error)
}

type (
	closer interface {
		Close()
	}
)

type OrdersProducer interface {
	OrderPlacer
	closer
}

type SearchEventsEmitter interface {
	SearchEventEmitter
	closer
}
