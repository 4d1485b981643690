package service

import (
	"sync"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
)

// A Session owns everything one shopper changes while browsing: the last
// filter criteria, the cart and the checkout flow. Operations on a session
// run one at a time.
type Session struct {
	id string

	// lastUsed is guarded by the Service mutex.
	lastUsed time.Time

	mu        sync.Mutex
	criteria  domain.FilterCriteria
	cart      domain.Cart
	flow      domain.CheckoutFlow
	persister CartPersister
}

func newSession(id string, cart domain.Cart, persister CartPersister) *Session {
	return &Session{
		id:        id,
		criteria:  domain.DefaultCriteria(),
		cart:      cart,
		persister: persister,
	}
}

func (s *Session) ID() string {
	return s.id
}

// summary must be called with s.mu held.
func (s *Session) summary() domain.CartSummary {
	return domain.CartSummary{
		Lines:     s.cart.Lines(),
		Subtotal:  s.cart.Subtotal(),
		ItemCount: s.cart.TotalItemCount(),
		State:     s.flow.State(),
	}
}
