package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
)

// SessionHeader carries the shopper session id on every session request.
const SessionHeader = "X-Session-ID"

type Storefront interface {
	port.CatalogBrowser
	port.CartManager
	port.CheckoutManager
}

type StorefrontHandler struct {
	sf     Storefront
	orders port.OrderFinder
}

// RegisterStorefront mounts the catalog, cart and checkout routes:
//
//	GET    /v1/facets
//	GET    /v1/products?category=&brand=&q=&sort=
//	GET    /v1/cart
//	POST   /v1/cart/lines          {"product_id","color"}
//	PATCH  /v1/cart/lines          {"product_id","color","delta"}
//	DELETE /v1/cart/lines?product_id=&color=
//	DELETE /v1/cart
//	POST   /v1/checkout/{open,close,begin,cancel}
//	POST   /v1/checkout/submit     {"name","email","address","card","agree"}
//	GET    /v1/orders/{id}         placing session only
func RegisterStorefront(mux *http.ServeMux, sf Storefront, orders port.OrderFinder) {
	h := StorefrontHandler{sf: sf, orders: orders}
	mux.HandleFunc("GET /v1/facets", h.GetFacets)
	mux.HandleFunc("GET /v1/products", h.GetProducts)
	mux.HandleFunc("GET /v1/cart", h.GetCart)
	mux.HandleFunc("POST /v1/cart/lines", h.PostCartLine)
	mux.HandleFunc("PATCH /v1/cart/lines", h.PatchCartLine)
	mux.HandleFunc("DELETE /v1/cart/lines", h.DeleteCartLine)
	mux.HandleFunc("DELETE /v1/cart", h.DeleteCart)
	mux.HandleFunc("POST /v1/checkout/open", h.transition(sf.OpenCart))
	mux.HandleFunc("POST /v1/checkout/close", h.transition(sf.CloseCart))
	mux.HandleFunc("POST /v1/checkout/begin", h.transition(sf.BeginCheckout))
	mux.HandleFunc("POST /v1/checkout/cancel", h.transition(sf.CancelCheckout))
	mux.HandleFunc("POST /v1/checkout/submit", h.PostSubmit)
	mux.HandleFunc("GET /v1/orders/{id}", h.GetOrder)
}

func (h StorefrontHandler) GetFacets(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetFacets"

	categories, brands := h.sf.Facets()
	writeJSON(w, op, http.StatusOK, FacetsResponse{
		Categories: categories,
		Brands:     brands,
	})
}

func (h StorefrontHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetProducts"

	q := r.URL.Query()
	c := domain.FilterCriteria{
		Category: optionOrAll(q.Get("category")),
		Brand:    optionOrAll(q.Get("brand")),
		Query:    q.Get("q"),
		Sort:     domain.ParseSortMode(q.Get("sort")),
	}

	ps, err := h.sf.Products(r.Context(), sessionID(r), c)
	if err != nil {
		writeErr(w, op, err)
		return
	}

	writeJSON(w, op, http.StatusOK, ProductsResponse{
		Products: toProducts(ps),
		Criteria: toCriteria(c),
	})
}

func (h StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetCart"
	h.cartResult(w, op)(h.sf.Cart(r.Context(), sessionID(r)))
}

func (h StorefrontHandler) PostCartLine(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PostCartLine"

	var req AddLineRequest
	if !readJSON(w, r, op, &req) {
		return
	}
	h.cartResult(w, op)(
		h.sf.AddToCart(r.Context(), sessionID(r), req.ProductID, req.Color),
	)
}

func (h StorefrontHandler) PatchCartLine(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PatchCartLine"

	var req ChangeQuantityRequest
	if !readJSON(w, r, op, &req) {
		return
	}
	h.cartResult(w, op)(h.sf.ChangeQuantity(
		r.Context(), sessionID(r), req.ProductID, req.Color, req.Delta,
	))
}

func (h StorefrontHandler) DeleteCartLine(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.DeleteCartLine"

	q := r.URL.Query()
	h.cartResult(w, op)(h.sf.RemoveLine(
		r.Context(), sessionID(r), q.Get("product_id"), q.Get("color"),
	))
}

func (h StorefrontHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.DeleteCart"
	h.cartResult(w, op)(h.sf.ClearCart(r.Context(), sessionID(r)))
}

func (h StorefrontHandler) cartResult(
	w http.ResponseWriter, op string,
) func(domain.CartSummary, error) {
	return func(s domain.CartSummary, err error) {
		if err != nil {
			writeErr(w, op, err)
			return
		}
		writeJSON(w, op, http.StatusOK, toCartResponse(s))
	}
}

func (h StorefrontHandler) transition(
	fn func(context.Context, string) (domain.CheckoutState, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "StorefrontHandler.transition"

		state, err := fn(r.Context(), sessionID(r))
		if err != nil {
			writeErr(w, op, err)
			return
		}
		writeJSON(w, op, http.StatusOK, StateResponse{State: state.String()})
	}
}

func (h StorefrontHandler) PostSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PostSubmit"

	var req CheckoutRequest
	if !readJSON(w, r, op, &req) {
		return
	}

	o, err := h.sf.SubmitCheckout(r.Context(), sessionID(r), req.toDomain())
	if err != nil {
		writeErr(w, op, err)
		return
	}

	writeJSON(w, op, http.StatusOK, toOrderResponse(o))
	slog.Info("order accepted", "op", op, "orderID", o.ID)
}

// GetOrder returns an order to the session that placed it. Orders of other
// sessions are reported as not found.
func (h StorefrontHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetOrder"

	o, err := h.orders.Order(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, op, err)
		return
	}
	if o.SessionID == "" || o.SessionID != sessionID(r) {
		writeErr(w, op, fmt.Errorf("%s: %w", op, service.ErrOrderNotFound))
		return
	}
	writeJSON(w, op, http.StatusOK, toOrderResponse(o))
}

func sessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}

func optionOrAll(v string) string {
	if v == "" {
		return domain.AllOption
	}
	return v
}

func readJSON(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Warn("failed to parse JSON", "op", op, "err", err)
		writeJSON(w, op, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON data"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, op string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response body", "op", op, "err", err)
	}
}

// writeErr maps service errors to status codes. Anything unexpected is
// logged and reported as 500 without details.
func writeErr(w http.ResponseWriter, op string, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		fields := make(map[string]string, len(verr.Fields))
		for f, msg := range verr.Fields {
			fields[string(f)] = msg
		}
		writeJSON(w, op, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  domain.ErrValidation.Error(),
			Fields: fields,
		})
		return
	}

	status := errStatus(err)
	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "op", op, "err", err)
		msg = http.StatusText(status)
	default:
		slog.Debug("request rejected", "op", op, "status", status, "err", err)
	}
	writeJSON(w, op, status, ErrorResponse{Error: msg})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownColor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrOrderPlacement):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
