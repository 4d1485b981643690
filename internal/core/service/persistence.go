package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/shopspring/decimal"
)

var (
	errTrailingData = errors.New("unexpected data after cart record")
	errMissingField = errors.New("cart line field is missing or null")
)

const cartSlotPrefix = "cart:"

// cartLineRecord is the saved shape of one cart line. Every field is
// required; pointers tell an absent or null field from a zero value. The
// price is kept as a bare JSON number.
type cartLineRecord struct {
	ID    *string         `json:"id"`
	Name  *string         `json:"name"`
	Price json.RawMessage `json:"price"`
	Color *string         `json:"color"`
	Image *string         `json:"image"`
	Qty   *int            `json:"qty"`
	Stock *int            `json:"stock"`
}

func (r cartLineRecord) line() (domain.CartLine, error) {
	if r.ID == nil || r.Name == nil || r.Color == nil || r.Image == nil ||
		r.Qty == nil || r.Stock == nil ||
		len(r.Price) == 0 || bytes.Equal(r.Price, []byte("null")) {
		return domain.CartLine{}, errMissingField
	}

	var price decimal.Decimal
	if err := price.UnmarshalJSON(r.Price); err != nil {
		return domain.CartLine{}, err
	}

	return domain.CartLine{
		ProductID: *r.ID,
		Color:     *r.Color,
		Name:      *r.Name,
		Image:     *r.Image,
		UnitPrice: price,
		StockCap:  *r.Stock,
		Quantity:  *r.Qty,
	}, nil
}

// A CartPersister saves and restores one session's cart under a fixed slot.
//
// Save never fails the caller and Load never returns a broken cart: both
// degrade to logging, and Load falls back to an empty cart.
type CartPersister struct {
	store    port.SlotStore
	key      string
	retryCfg retry.RetryConfig
}

func NewCartPersister(
	store port.SlotStore, sessionID string, retryCfg retry.RetryConfig,
) CartPersister {
	return CartPersister{
		store:    store,
		key:      CartSlotKey(sessionID),
		retryCfg: retryCfg,
	}
}

// CartSlotKey is the slot holding the cart of the session.
func CartSlotKey(sessionID string) string {
	return cartSlotPrefix + sessionID
}

func (p CartPersister) Key() string {
	return p.key
}

// Save writes the full cart. Transient store failures are retried; a write
// that still fails is logged and dropped.
func (p CartPersister) Save(ctx context.Context, cart *domain.Cart) {
	const op = "CartPersister.Save"
	log := slog.With("op", op, "key", p.key)

	data, err := EncodeCart(cart)
	if err != nil {
		log.Error("failed to encode cart", "err", err)
		return
	}

	err = retry.Do(ctx, p.retryCfg, func() error {
		return p.store.Put(ctx, p.key, data)
	})
	if err != nil {
		log.Error("failed to save cart", "err", err)
		return
	}
	log.Debug("cart saved", "lines", cart.Len())
}

// Load restores the saved cart. A missing, unreadable or corrupt slot
// yields an empty cart; the corrupt record is replaced on the next Save.
func (p CartPersister) Load(ctx context.Context) domain.Cart {
	const op = "CartPersister.Load"
	log := slog.With("op", op, "key", p.key)

	data, err := retry.DoWithResult(ctx, readRetry(p.retryCfg), func() ([]byte, error) {
		return p.store.Get(ctx, p.key)
	})
	if err != nil {
		if errors.Is(err, port.ErrSlotNotFound) {
			log.Debug("no saved cart")
			return domain.Cart{}
		}
		log.Warn("failed to read saved cart, starting empty", "err", err)
		return domain.Cart{}
	}

	cart, err := DecodeCart(data)
	if err != nil {
		log.Warn("discarding corrupt saved cart", "err", err)
		return domain.Cart{}
	}
	return cart
}

// readRetry retries slot reads except for a missing slot.
func readRetry(c retry.RetryConfig) retry.RetryConfig {
	c.ShouldRetry = func(err error) bool {
		return !errors.Is(err, port.ErrSlotNotFound)
	}
	return c
}

func EncodeCart(cart *domain.Cart) ([]byte, error) {
	const op = "EncodeCart"

	lines := cart.Lines()
	rs := make([]cartLineRecord, len(lines))
	for i, l := range lines {
		rs[i] = cartLineRecord{
			ID:    &l.ProductID,
			Name:  &l.Name,
			Price: json.RawMessage(l.UnitPrice.String()),
			Color: &l.Color,
			Image: &l.Image,
			Qty:   &l.Quantity,
			Stock: &l.StockCap,
		}
	}

	data, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// DecodeCart parses a saved cart. Prices may be JSON numbers or strings.
// Records that do not match the line shape, miss a field or break the cart
// invariants are rejected as a whole.
func DecodeCart(data []byte) (domain.Cart, error) {
	const op = "DecodeCart"

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var rs []cartLineRecord
	if err := dec.Decode(&rs); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, errTrailingData)
	}

	lines := make([]domain.CartLine, len(rs))
	for i, r := range rs {
		l, err := r.line()
		if err != nil {
			return domain.Cart{}, fmt.Errorf("%s: line %d: %w", op, i, err)
		}
		lines[i] = l
	}

	cart, err := domain.RestoreCart(lines)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return cart, nil
}
