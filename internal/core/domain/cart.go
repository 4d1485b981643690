package domain

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

var (
	ErrOutOfStock    = errors.New("product is out of stock")
	ErrUnknownColor  = errors.New("product has no such color")
	ErrInvalidLine   = errors.New("invalid cart line")
	ErrDuplicateLine = errors.New("duplicate cart line")
)

type LineKey struct {
	ProductID string
	Color     string
}

// A CartLine freezes price, stock and display data of the product at the
// moment it was first added.
type CartLine struct {
	ProductID string
	Color     string
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	StockCap  int
	Quantity  int
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Color: l.Color}
}

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l CartLine) validate() error {
	switch {
	case l.ProductID == "":
		return fmt.Errorf("%w: empty product id", ErrInvalidLine)
	case l.UnitPrice.IsNegative():
		return fmt.Errorf("%w: %v: negative price", ErrInvalidLine, l.Key())
	case l.Quantity < 1 || l.Quantity > l.StockCap:
		return fmt.Errorf(
			"%w: %v: quantity %d out of [1, %d]",
			ErrInvalidLine, l.Key(), l.Quantity, l.StockCap,
		)
	}
	return nil
}

// A Cart is an ordered set of lines with unique keys. Every line satisfies
// 1 <= Quantity <= StockCap before and after each method call.
//
// The zero value is an empty cart.
type Cart struct {
	lines []CartLine
}

// RestoreCart rebuilds a cart from previously saved lines, rejecting any
// line set that breaks the cart invariants.
func RestoreCart(lines []CartLine) (Cart, error) {
	const op = "RestoreCart"

	seen := make(map[LineKey]struct{}, len(lines))
	for _, l := range lines {
		if err := l.validate(); err != nil {
			return Cart{}, fmt.Errorf("%s: %w", op, err)
		}
		if _, ok := seen[l.Key()]; ok {
			return Cart{}, fmt.Errorf("%s: %w: %v", op, ErrDuplicateLine, l.Key())
		}
		seen[l.Key()] = struct{}{}
	}
	return Cart{lines: slices.Clone(lines)}, nil
}

func (c *Cart) Lines() []CartLine {
	return slices.Clone(c.lines)
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Find(key LineKey) (CartLine, bool) {
	i := c.indexOf(key)
	if i < 0 {
		return CartLine{}, false
	}
	return c.lines[i], true
}

// AddLine adds one unit of the product in the given color. A line that
// already exists grows by one up to its stock cap; at the cap the call is a
// silent no-op. Adding a product without stock is a caller mistake and is
// rejected with [ErrOutOfStock].
func (c *Cart) AddLine(p Product, color string) error {
	const op = "Cart.AddLine"

	if !p.InStock() {
		return fmt.Errorf("%s: %w: %q", op, ErrOutOfStock, p.ID)
	}

	key := LineKey{ProductID: p.ID, Color: color}
	if i := c.indexOf(key); i >= 0 {
		l := &c.lines[i]
		l.Quantity = min(l.Quantity+1, l.StockCap)
		return nil
	}

	c.lines = append(c.lines, CartLine{
		ProductID: p.ID,
		Color:     color,
		Name:      p.Name,
		Image:     p.Image,
		UnitPrice: p.Price,
		StockCap:  p.Stock,
		Quantity:  1,
	})
	return nil
}

// ChangeQuantity moves the line quantity by delta, clamped to
// [1, StockCap]. Unknown keys are ignored.
func (c *Cart) ChangeQuantity(productID, color string, delta int) {
	i := c.indexOf(LineKey{ProductID: productID, Color: color})
	if i < 0 {
		return
	}

	l := &c.lines[i]
	l.Quantity = clampQuantity(l.Quantity, delta, l.StockCap)
	if l.Quantity <= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
	}
}

// clampQuantity computes clamp(q+delta, 1, limit) without overflowing on
// extreme deltas.
func clampQuantity(q, delta, limit int) int {
	switch {
	case delta >= limit-q:
		return limit
	case delta <= 1-q:
		return 1
	}
	return q + delta
}

func (c *Cart) RemoveLine(productID, color string) {
	i := c.indexOf(LineKey{ProductID: productID, Color: color})
	if i < 0 {
		return
	}
	c.lines = slices.Delete(c.lines, i, i+1)
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Total())
	}
	return total
}

// TotalItemCount is the sum of quantities over all lines.
func (c *Cart) TotalItemCount() int {
	var n int
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) indexOf(key LineKey) int {
	return slices.IndexFunc(c.lines, func(l CartLine) bool {
		return l.Key() == key
	})
}
