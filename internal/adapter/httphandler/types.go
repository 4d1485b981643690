package httphandler

import (
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
)

type (
	Product struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Brand       string   `json:"brand"`
		Category    string   `json:"category"`
		Price       string   `json:"price"`
		Rating      float64  `json:"rating"`
		Reviews     int      `json:"reviews"`
		Colors      []string `json:"colors"`
		Image       string   `json:"image"`
		Description string   `json:"description"`
		Stock       int      `json:"stock"`
		InStock     bool     `json:"in_stock"`
		Tags        []string `json:"tags"`
	}

	ProductsResponse struct {
		Products []Product `json:"products"`
		Criteria Criteria  `json:"criteria"`
	}

	Criteria struct {
		Category string `json:"category"`
		Brand    string `json:"brand"`
		Query    string `json:"q"`
		Sort     string `json:"sort"`
	}

	FacetsResponse struct {
		Categories []string `json:"categories"`
		Brands     []string `json:"brands"`
	}
)

type (
	CartLine struct {
		ProductID string `json:"product_id"`
		Color     string `json:"color"`
		Name      string `json:"name"`
		Image     string `json:"image"`
		UnitPrice string `json:"unit_price"`
		Quantity  int    `json:"quantity"`
		Stock     int    `json:"stock"`
		LineTotal string `json:"line_total"`
	}

	CartResponse struct {
		Lines     []CartLine `json:"lines"`
		Subtotal  string     `json:"subtotal"`
		ItemCount int        `json:"item_count"`
		State     string     `json:"state"`
	}

	AddLineRequest struct {
		ProductID string `json:"product_id"`
		Color     string `json:"color"`
	}

	ChangeQuantityRequest struct {
		ProductID string `json:"product_id"`
		Color     string `json:"color"`
		Delta     int    `json:"delta"`
	}
)

type (
	StateResponse struct {
		State string `json:"state"`
	}

	CheckoutRequest struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Address string `json:"address"`
		Card    string `json:"card"`
		Agree   bool   `json:"agree"`
	}

	Customer struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Address string `json:"address"`
	}

	OrderResponse struct {
		ID        string     `json:"id"`
		Customer  Customer   `json:"customer"`
		CardLast4 string     `json:"card_last4"`
		Lines     []CartLine `json:"lines"`
		Subtotal  string     `json:"subtotal"`
		ItemCount int        `json:"item_count"`
		PlacedAt  time.Time  `json:"placed_at"`
	}

	ErrorResponse struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields,omitempty"`
	}
)

func toProducts(ps []domain.Product) []Product {
	out := make([]Product, len(ps))
	for i, p := range ps {
		out[i] = Product{
			ID:          p.ID,
			Name:        p.Name,
			Brand:       p.Brand,
			Category:    p.Category,
			Price:       p.Price.StringFixed(2),
			Rating:      p.Rating,
			Reviews:     p.Reviews,
			Colors:      p.Colors,
			Image:       p.Image,
			Description: p.Description,
			Stock:       p.Stock,
			InStock:     p.InStock(),
			Tags:        p.Tags,
		}
	}
	return out
}

func toCriteria(c domain.FilterCriteria) Criteria {
	return Criteria{
		Category: c.Category,
		Brand:    c.Brand,
		Query:    c.Query,
		Sort:     string(c.Sort),
	}
}

func toCartLines(ls []domain.CartLine) []CartLine {
	out := make([]CartLine, len(ls))
	for i, l := range ls {
		out[i] = CartLine{
			ProductID: l.ProductID,
			Color:     l.Color,
			Name:      l.Name,
			Image:     l.Image,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			Stock:     l.StockCap,
			LineTotal: l.Total().StringFixed(2),
		}
	}
	return out
}

func toCartResponse(s domain.CartSummary) CartResponse {
	return CartResponse{
		Lines:     toCartLines(s.Lines),
		Subtotal:  s.Subtotal.StringFixed(2),
		ItemCount: s.ItemCount,
		State:     s.State.String(),
	}
}

func toOrderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID: o.ID,
		Customer: Customer{
			Name:    o.Customer.Name,
			Email:   o.Customer.Email,
			Address: o.Customer.Address,
		},
		CardLast4: o.CardLast4,
		Lines:     toCartLines(o.Lines),
		Subtotal:  o.Subtotal.StringFixed(2),
		ItemCount: o.ItemCount(),
		PlacedAt:  o.PlacedAt,
	}
}

func (r CheckoutRequest) toDomain() domain.CheckoutForm {
	return domain.CheckoutForm{
		Name:    r.Name,
		Email:   r.Email,
		Address: r.Address,
		Card:    r.Card,
		Agree:   r.Agree,
	}
}
