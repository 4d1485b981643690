package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

//go:embed default_catalog.json
var defaultCatalog []byte

type product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Rating      float64         `json:"rating"`
	Reviews     int             `json:"reviews"`
	Colors      []string        `json:"colors"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	Tags        []string        `json:"tags"`
}

func (p product) toDomain() domain.Product {
	return domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		Price:       p.Price,
		Rating:      p.Rating,
		Reviews:     p.Reviews,
		Colors:      p.Colors,
		Image:       p.Image,
		Description: p.Description,
		Stock:       p.Stock,
		Tags:        p.Tags,
	}
}

// Default returns the catalog shipped with the binary.
func Default() (domain.Catalog, error) {
	const op = "catalog.Default"

	c, err := Parse(defaultCatalog)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Load reads a catalog file. An empty path selects [Default].
func Load(path string) (domain.Catalog, error) {
	const op = "catalog.Load"

	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}

	c, err := Parse(data)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return c, nil
}

// Parse decodes a JSON array of products. Prices may be given as numbers or
// decimal strings.
func Parse(data []byte) (domain.Catalog, error) {
	const op = "catalog.Parse"

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var ps []product
	if err := dec.Decode(&ps); err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}

	dps := make([]domain.Product, len(ps))
	for i, p := range ps {
		dps[i] = p.toDomain()
	}

	c, err := domain.NewCatalog(dps)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
