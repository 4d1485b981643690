package domain

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrDuplicateProduct = errors.New("duplicate product id")
)

const maxRating = 5.0

type Product struct {
	ID          string
	Name        string
	Brand       string
	Category    string
	Price       decimal.Decimal
	Rating      float64
	Reviews     int
	Colors      []string
	Image       string
	Description string
	Stock       int
	Tags        []string
}

// Validate reports the first constraint the product breaks.
func (p Product) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: %q: negative price", ErrInvalidProduct, p.ID)
	case p.Rating < 0 || p.Rating > maxRating:
		return fmt.Errorf("%w: %q: rating out of range", ErrInvalidProduct, p.ID)
	case p.Reviews < 0:
		return fmt.Errorf("%w: %q: negative reviews", ErrInvalidProduct, p.ID)
	case len(p.Colors) == 0:
		return fmt.Errorf("%w: %q: no colors", ErrInvalidProduct, p.ID)
	case p.Stock < 0:
		return fmt.Errorf("%w: %q: negative stock", ErrInvalidProduct, p.ID)
	}
	return nil
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

func (p Product) HasColor(color string) bool {
	return slices.Contains(p.Colors, color)
}

// DefaultColor is the color preselected for the product.
func (p Product) DefaultColor() string {
	if len(p.Colors) == 0 {
		return ""
	}
	return p.Colors[0]
}

// A Catalog is the immutable, ordered set of purchasable products.
type Catalog struct {
	products []Product
	index    map[string]int
}

func NewCatalog(ps []Product) (Catalog, error) {
	const op = "NewCatalog"

	c := Catalog{
		products: slices.Clone(ps),
		index:    make(map[string]int, len(ps)),
	}
	for i, p := range c.products {
		if err := p.Validate(); err != nil {
			return Catalog{}, fmt.Errorf("%s: %w", op, err)
		}
		if _, ok := c.index[p.ID]; ok {
			return Catalog{}, fmt.Errorf("%s: %w: %q", op, ErrDuplicateProduct, p.ID)
		}
		c.index[p.ID] = i
	}
	return c, nil
}

// Products returns the catalog in its stored order.
func (c Catalog) Products() []Product {
	return slices.Clone(c.products)
}

func (c Catalog) Len() int {
	return len(c.products)
}

func (c Catalog) Find(id string) (Product, error) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %q", ErrProductNotFound, id)
	}
	return c.products[i], nil
}
