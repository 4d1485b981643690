package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	Customer struct {
		Name    string
		Email   string
		Address string
	}

	// An Order is what gets handed over to order placement once the
	// checkout form is valid. The card number is reduced to its last digits.
	Order struct {
		ID        string
		SessionID string
		Customer  Customer
		CardLast4 string
		Lines     []CartLine
		Subtotal  decimal.Decimal
		PlacedAt  time.Time
	}
)

func NewOrder(
	id, sessionID string, form CheckoutForm, cart *Cart, placedAt time.Time,
) Order {
	return Order{
		ID:        id,
		SessionID: sessionID,
		Customer: Customer{
			Name:    form.Name,
			Email:   form.Email,
			Address: form.Address,
		},
		CardLast4: CardLast4(form.Card),
		Lines:     cart.Lines(),
		Subtotal:  cart.Subtotal(),
		PlacedAt:  placedAt,
	}
}

func (o Order) ItemCount() int {
	var n int
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// A SearchEvent records one catalog query made by a session.
type SearchEvent struct {
	SessionID  string
	Criteria   FilterCriteria
	Results    int
	SearchedAt time.Time
}

// CartSummary is the cart state shown to the user.
type CartSummary struct {
	Lines     []CartLine
	Subtotal  decimal.Decimal
	ItemCount int
	State     CheckoutState
}
