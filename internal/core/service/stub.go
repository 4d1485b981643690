package service

import (
	"context"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.OrderPlacer = StubOrderPlacer{}
var _ port.SearchEventEmitter = NopSearchEmitter{}

// StubOrderPlacer accepts every order without charging anything.
type StubOrderPlacer struct{}

func (StubOrderPlacer) PlaceOrder(ctx context.Context, o domain.Order) error {
	const op = "StubOrderPlacer.PlaceOrder"

	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("order placed, no payment processed",
		"op", op,
		"orderID", o.ID,
		"items", o.ItemCount(),
		"subtotal", o.Subtotal.StringFixed(2),
	)
	return nil
}

type NopSearchEmitter struct{}

func (NopSearchEmitter) EmitSearch(context.Context, domain.SearchEvent) error {
	return nil
}
