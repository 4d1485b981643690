package domain

import (
	"cmp"
	"slices"
	"strings"
)

// AllOption disables the category or brand filter.
const AllOption = "All"

type SortMode string

const (
	SortFeatured   SortMode = "featured"
	SortPriceAsc   SortMode = "price-asc"
	SortPriceDesc  SortMode = "price-desc"
	SortRatingDesc SortMode = "rating-desc"
)

// ParseSortMode maps user input to a sort mode, falling back to
// [SortFeatured] for anything it does not recognize.
func ParseSortMode(s string) SortMode {
	switch strings.TrimSpace(s) {
	case string(SortPriceAsc):
		return SortPriceAsc
	case string(SortPriceDesc):
		return SortPriceDesc
	case string(SortRatingDesc), "rating":
		return SortRatingDesc
	default:
		return SortFeatured
	}
}

type FilterCriteria struct {
	Category string
	Brand    string
	Query    string
	Sort     SortMode
}

func DefaultCriteria() FilterCriteria {
	return FilterCriteria{
		Category: AllOption,
		Brand:    AllOption,
		Sort:     SortFeatured,
	}
}

// Query filters the catalog by category, brand and free text, then
// stable-sorts the result by the selected mode. The input is not modified.
func Query(catalog []Product, c FilterCriteria) []Product {
	text := strings.ToLower(c.Query)
	withText := strings.TrimSpace(c.Query) != ""

	list := make([]Product, 0, len(catalog))
	for _, p := range catalog {
		if !selected(c.Category, p.Category) || !selected(c.Brand, p.Brand) {
			continue
		}
		if withText && !matchText(p, text) {
			continue
		}
		list = append(list, p)
	}

	slices.SortStableFunc(list, comparator(c.Sort))
	return list
}

func selected(option, value string) bool {
	return option == "" || option == AllOption || option == value
}

func matchText(p Product, lowered string) bool {
	if strings.Contains(strings.ToLower(p.Name), lowered) ||
		strings.Contains(strings.ToLower(p.Brand), lowered) {
		return true
	}
	return slices.ContainsFunc(p.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), lowered)
	})
}

func comparator(mode SortMode) func(a, b Product) int {
	switch mode {
	case SortPriceAsc:
		return func(a, b Product) int { return a.Price.Cmp(b.Price) }
	case SortPriceDesc:
		return func(a, b Product) int { return b.Price.Cmp(a.Price) }
	case SortRatingDesc:
		return func(a, b Product) int { return cmp.Compare(b.Rating, a.Rating) }
	default:
		return func(a, b Product) int { return cmp.Compare(b.Reviews, a.Reviews) }
	}
}

// Categories lists the category selector options: [AllOption] followed by
// every distinct category in catalog order.
func Categories(catalog []Product) []string {
	return facet(catalog, func(p Product) string { return p.Category })
}

// Brands is [Categories] for brands.
func Brands(catalog []Product) []string {
	return facet(catalog, func(p Product) string { return p.Brand })
}

func facet(catalog []Product, field func(Product) string) []string {
	seen := make(map[string]struct{}, len(catalog))
	options := []string{AllOption}
	for _, p := range catalog {
		v := field(p)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		options = append(options, v)
	}
	return options
}
