package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
)

var _ port.CatalogBrowser = (*Service)(nil)
var _ port.CartManager = (*Service)(nil)
var _ port.CheckoutManager = (*Service)(nil)

var (
	ErrInvalidSession = errors.New("invalid session id")
	ErrOrderPlacement = errors.New("failed to place order")
)

type Opt func(*Service)

func RetryOpt(c retry.RetryConfig) Opt {
	return func(s *Service) {
		s.retryCfg = c
	}
}

func ClockOpt(now func() time.Time) Opt {
	return func(s *Service) {
		s.now = now
	}
}

func OrderIDOpt(newID func() string) Opt {
	return func(s *Service) {
		s.newID = newID
	}
}

// SessionIdleOpt drops sessions unused for longer than ttl from memory. The
// cart of a dropped session is restored from the store on its next request.
// A zero ttl keeps sessions forever.
func SessionIdleOpt(ttl time.Duration) Opt {
	return func(s *Service) {
		s.idleTTL = ttl
	}
}

type Service struct {
	catalog  domain.Catalog
	store    port.SlotStore
	placer   port.OrderPlacer
	emitter  port.SearchEventEmitter
	retryCfg retry.RetryConfig
	now      func() time.Time
	newID    func() string
	idleTTL  time.Duration

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
}

// New creates the storefront service. A nil placer places orders with
// [StubOrderPlacer]; a nil emitter drops search events.
func New(
	catalog domain.Catalog,
	store port.SlotStore,
	placer port.OrderPlacer,
	emitter port.SearchEventEmitter,
	opts ...Opt,
) *Service {
	if placer == nil {
		placer = StubOrderPlacer{}
	}
	if emitter == nil {
		emitter = NopSearchEmitter{}
	}

	s := &Service{
		catalog:  catalog,
		store:    store,
		placer:   placer,
		emitter:  emitter,
		retryCfg: retry.RetryConfig{MaxAttempts: 1},
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session returns the live session, restoring its saved cart on first use.
// The store is read without holding s.mu; when two requests restore the same
// session at once, the first one registered wins.
func (s *Service) session(ctx context.Context, id string) (*Session, error) {
	const op = "Service.session"

	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}

	if sess, ok := s.lookup(id); ok {
		return sess, nil
	}

	persister := NewCartPersister(s.store, id, s.retryCfg)
	cart := persister.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = s.now()
		return sess, nil
	}

	sess := newSession(id, cart, persister)
	sess.lastUsed = s.now()
	s.sessions[id] = sess

	slog.Info("session started", "op", op, "sessionID", id, "lines", sess.cart.Len())
	return sess, nil
}

func (s *Service) lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictIdle(now)

	sess, ok := s.sessions[id]
	if ok {
		sess.lastUsed = now
	}
	return sess, ok
}

// evictIdle must be called with s.mu held. It scans the sessions at most
// twice per idle ttl.
func (s *Service) evictIdle(now time.Time) {
	const op = "Service.evictIdle"

	if s.idleTTL <= 0 || now.Sub(s.lastSweep) < s.idleTTL/2 {
		return
	}
	s.lastSweep = now

	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.idleTTL {
			delete(s.sessions, id)
			slog.Debug("idle session evicted", "op", op, "sessionID", id)
		}
	}
}

func (s *Service) Facets() (categories, brands []string) {
	ps := s.catalog.Products()
	return domain.Categories(ps), domain.Brands(ps)
}

// Products replaces the session filter criteria and returns the matching
// products. The search is reported to the emitter on a best-effort basis.
func (s *Service) Products(
	ctx context.Context, sessionID string, c domain.FilterCriteria,
) ([]domain.Product, error) {
	const op = "Service.Products"

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess.mu.Lock()
	sess.criteria = c
	sess.mu.Unlock()

	ps := domain.Query(s.catalog.Products(), c)

	evt := domain.SearchEvent{
		SessionID:  sessionID,
		Criteria:   c,
		Results:    len(ps),
		SearchedAt: s.now(),
	}
	if err := s.emitter.EmitSearch(ctx, evt); err != nil {
		slog.Warn("failed to emit search event", "op", op, "err", err)
	}

	return ps, nil
}

// Criteria returns the filter criteria the session used last.
func (s *Service) Criteria(
	ctx context.Context, sessionID string,
) (domain.FilterCriteria, error) {
	const op = "Service.Criteria"

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.FilterCriteria{}, fmt.Errorf("%s: %w", op, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.criteria, nil
}

func (s *Service) Cart(
	ctx context.Context, sessionID string,
) (domain.CartSummary, error) {
	const op = "Service.Cart"

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.summary(), nil
}

// AddToCart adds one unit of the product. An empty color selects the
// product's first color.
func (s *Service) AddToCart(
	ctx context.Context, sessionID, productID, color string,
) (domain.CartSummary, error) {
	const op = "Service.AddToCart"

	p, err := s.catalog.Find(productID)
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	if color == "" {
		color = p.DefaultColor()
	} else if !p.HasColor(color) {
		return domain.CartSummary{}, fmt.Errorf(
			"%s: %w: %q", op, domain.ErrUnknownColor, color,
		)
	}

	return s.mutateCart(ctx, op, sessionID, func(c *domain.Cart) error {
		return c.AddLine(p, color)
	})
}

func (s *Service) ChangeQuantity(
	ctx context.Context, sessionID, productID, color string, delta int,
) (domain.CartSummary, error) {
	const op = "Service.ChangeQuantity"
	return s.mutateCart(ctx, op, sessionID, func(c *domain.Cart) error {
		c.ChangeQuantity(productID, color, delta)
		return nil
	})
}

func (s *Service) RemoveLine(
	ctx context.Context, sessionID, productID, color string,
) (domain.CartSummary, error) {
	const op = "Service.RemoveLine"
	return s.mutateCart(ctx, op, sessionID, func(c *domain.Cart) error {
		c.RemoveLine(productID, color)
		return nil
	})
}

func (s *Service) ClearCart(
	ctx context.Context, sessionID string,
) (domain.CartSummary, error) {
	const op = "Service.ClearCart"
	return s.mutateCart(ctx, op, sessionID, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
}

// mutateCart applies fn to the session cart and, when fn succeeds, saves
// the resulting cart exactly once.
func (s *Service) mutateCart(
	ctx context.Context, op, sessionID string, fn func(*domain.Cart) error,
) (domain.CartSummary, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(&sess.cart); err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	sess.persister.Save(ctx, &sess.cart)

	return sess.summary(), nil
}

func (s *Service) OpenCart(
	ctx context.Context, sessionID string,
) (domain.CheckoutState, error) {
	const op = "Service.OpenCart"
	return s.transition(ctx, op, sessionID, func(sess *Session) error {
		return sess.flow.Open()
	})
}

func (s *Service) CloseCart(
	ctx context.Context, sessionID string,
) (domain.CheckoutState, error) {
	const op = "Service.CloseCart"
	return s.transition(ctx, op, sessionID, func(sess *Session) error {
		return sess.flow.Close()
	})
}

func (s *Service) BeginCheckout(
	ctx context.Context, sessionID string,
) (domain.CheckoutState, error) {
	const op = "Service.BeginCheckout"
	return s.transition(ctx, op, sessionID, func(sess *Session) error {
		return sess.flow.Begin(sess.cart.IsEmpty())
	})
}

func (s *Service) CancelCheckout(
	ctx context.Context, sessionID string,
) (domain.CheckoutState, error) {
	const op = "Service.CancelCheckout"
	return s.transition(ctx, op, sessionID, func(sess *Session) error {
		return sess.flow.Cancel()
	})
}

func (s *Service) transition(
	ctx context.Context, op, sessionID string, fn func(*Session) error,
) (domain.CheckoutState, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.StateIdle, fmt.Errorf("%s: %w", op, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(sess); err != nil {
		return sess.flow.State(), fmt.Errorf("%s: %w", op, err)
	}
	return sess.flow.State(), nil
}

// SubmitCheckout validates the form and, when it is valid, places the order,
// clears the cart and ends the checkout. A rejected form leaves the session
// untouched and the returned error unwraps to [*domain.ValidationError].
func (s *Service) SubmitCheckout(
	ctx context.Context, sessionID string, f domain.CheckoutForm,
) (domain.Order, error) {
	const op = "Service.SubmitCheckout"

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.flow.State() != domain.StateCheckingOut {
		return domain.Order{}, fmt.Errorf(
			"%s: %w: submit from %s", op, domain.ErrInvalidTransition, sess.flow.State(),
		)
	}

	if errs := domain.Validate(f); !errs.Valid() {
		return domain.Order{}, fmt.Errorf(
			"%s: %w", op, &domain.ValidationError{Fields: errs},
		)
	}

	if sess.cart.IsEmpty() {
		return domain.Order{}, fmt.Errorf("%s: %w", op, domain.ErrEmptyCart)
	}

	order := domain.NewOrder(s.newID(), sess.id, f, &sess.cart, s.now())
	if err := s.placer.PlaceOrder(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w: %w", op, ErrOrderPlacement, err)
	}

	sess.cart.Clear()
	sess.persister.Save(ctx, &sess.cart)
	if err := sess.flow.Submit(); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	slog.Info("checkout completed", "op", op, "sessionID", sess.id, "orderID", order.ID)
	return order, nil
}
