package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve *orders.ValidationError
	var se *orders.StockError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Details: ve.Problems})
	case errors.As(err, &se):
		writeJSON(w, http.StatusConflict, errorBody{Error: se.Error()})
	case errors.Is(err, orders.ErrInsufficientStock), errors.Is(err, orders.ErrReservationRace):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, orders.ErrUpstreamUnavailable):
		log.Warn("upstream unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "a dependency is unavailable, try again later"})
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
