package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/shopspring/decimal"
)

var ErrOrderNotFound = errors.New("order not found")

var _ port.OrdersRecorder = (*OrderLedger)(nil)
var _ port.OrderPlacer = (*OrderLedger)(nil)
var _ port.OrderFinder = (*OrderLedger)(nil)

const orderSlotPrefix = "order:"

type orderRecord struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Address   string            `json:"address"`
	CardLast4 string            `json:"card_last4"`
	Lines     []orderLineRecord `json:"lines"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	PlacedAt  time.Time         `json:"placed_at"`
}

type orderLineRecord struct {
	ID    string          `json:"id"`
	Color string          `json:"color"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty"`
}

// An OrderLedger keeps placed orders in the slot store, one slot per order.
// Recording the same order twice overwrites it with identical content, so
// redelivered orders are harmless.
type OrderLedger struct {
	store    port.SlotStore
	retryCfg retry.RetryConfig
}

func NewOrderLedger(store port.SlotStore, retryCfg retry.RetryConfig) *OrderLedger {
	return &OrderLedger{store: store, retryCfg: retryCfg}
}

func OrderSlotKey(orderID string) string {
	return orderSlotPrefix + orderID
}

// PlaceOrder records the order directly. It is the placement used when no
// broker is configured.
func (l *OrderLedger) PlaceOrder(ctx context.Context, o domain.Order) error {
	const op = "OrderLedger.PlaceOrder"

	if err := l.RecordOrders(ctx, []domain.Order{o}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	slog.Info("order placed, no payment processed",
		"op", op,
		"orderID", o.ID,
		"items", o.ItemCount(),
		"subtotal", o.Subtotal.StringFixed(2),
	)
	return nil
}

func (l *OrderLedger) RecordOrders(ctx context.Context, orders []domain.Order) error {
	const op = "OrderLedger.RecordOrders"

	for _, o := range orders {
		data, err := json.Marshal(orderToRecord(o))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		key := OrderSlotKey(o.ID)
		err = retry.Do(ctx, l.retryCfg, func() error {
			return l.store.Put(ctx, key, data)
		})
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, key, err)
		}
	}
	return nil
}

func (l *OrderLedger) Order(ctx context.Context, orderID string) (domain.Order, error) {
	const op = "OrderLedger.Order"

	key := OrderSlotKey(orderID)
	data, err := retry.DoWithResult(ctx, readRetry(l.retryCfg), func() ([]byte, error) {
		return l.store.Get(ctx, key)
	})
	if err != nil {
		if errors.Is(err, port.ErrSlotNotFound) {
			return domain.Order{}, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	var r orderRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return r.toDomain(), nil
}

func orderToRecord(o domain.Order) orderRecord {
	lines := make([]orderLineRecord, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineRecord{
			ID:    l.ProductID,
			Color: l.Color,
			Name:  l.Name,
			Price: l.UnitPrice,
			Qty:   l.Quantity,
		}
	}
	return orderRecord{
		ID:        o.ID,
		SessionID: o.SessionID,
		Name:      o.Customer.Name,
		Email:     o.Customer.Email,
		Address:   o.Customer.Address,
		CardLast4: o.CardLast4,
		Lines:     lines,
		Subtotal:  o.Subtotal,
		PlacedAt:  o.PlacedAt,
	}
}

func (r orderRecord) toDomain() domain.Order {
	lines := make([]domain.CartLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = domain.CartLine{
			ProductID: l.ID,
			Color:     l.Color,
			Name:      l.Name,
			UnitPrice: l.Price,
			Quantity:  l.Qty,
		}
	}
	return domain.Order{
		ID:        r.ID,
		SessionID: r.SessionID,
		Customer: domain.Customer{
			Name:    r.Name,
			Email:   r.Email,
			Address: r.Address,
		},
		CardLast4: r.CardLast4,
		Lines:     lines,
		Subtotal:  r.Subtotal,
		PlacedAt:  r.PlacedAt,
	}
}
