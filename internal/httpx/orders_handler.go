package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/invoice"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderService interface {
	Create(ctx context.Context, req orders.CreateRequest) (orders.Checkout, error)
	Get(ctx context.Context, id int64) (orders.Order, error)
	ListByEmail(ctx context.Context, email string) ([]orders.Order, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type InvoiceReader interface {
	Get(ctx context.Context, orderID int64) ([]byte, error)
}

type OrdersHandler struct {
	Service  OrderService
	Invoices InvoiceReader
	Log      *zap.Logger
}

const maxOrderBody = 1 << 20

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/invoice", h.getInvoice)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody)).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out, err := h.Service.Create(ctx, req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListByEmail(ctx, r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Service.ListProducts(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	doc, err := h.Invoices.Get(ctx, id)
	if errors.Is(err, invoice.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "invoice not ready"})
		return
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "order id must be a positive integer")
		return 0, false
	}
	return id, true
}
