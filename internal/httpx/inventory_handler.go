package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	Service *inventory.Service
	Log     *zap.Logger
}

type quantityReq struct {
	Quantity *int64 `json:"quantity"`
}

type successResp struct {
	Success bool `json:"success"`
}

type stockView struct {
	ProductID int64 `json:"productId"`
	Total     int64 `json:"total"`
	Reserved  int64 `json:"reserved"`
	Available int64 `json:"available"`
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Get("/inventory", h.list)
	r.Get("/inventory/{productId}", h.get)
	r.Put("/inventory/{productId}", h.mutate(h.Service.UpdateStock))
	r.Post("/inventory/{productId}/reserve", h.mutate(h.Service.ReserveStock))
	r.Post("/inventory/{productId}/release", h.mutate(h.Service.ReleaseStock))
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	lvl, err := h.Service.GetStock(ctx, id)
	if err != nil {
		h.Log.Error("get stock", zap.Int64("product_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	recs, err := h.Service.GetAllStock(ctx)
	if err != nil {
		h.Log.Error("list stock", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	out := make([]stockView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, stockView{ProductID: rec.ProductID, Total: rec.Total, Reserved: rec.Reserved, Available: rec.Available()})
	}
	writeJSON(w, http.StatusOK, out)
}

// mutate serves the three write routes. A rejected operation is a 200 with
// success=false; only a failing store is a 500.
func (h *InventoryHandler) mutate(op func(context.Context, int64, int64) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := productID(w, r)
		if !ok {
			return
		}
		var req quantityReq
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			writeBadRequest(w, "invalid json")
			return
		}
		if req.Quantity == nil {
			writeBadRequest(w, "quantity is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		done, err := op(ctx, id, *req.Quantity)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, successResp{Success: done})
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "productId must be a positive integer")
		return 0, false
	}
	return id, true
}
