package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, ev payment.Event) (orders.Outcome, error)
}

type EventParser interface {
	Parse(payload []byte, signature string) (payment.Event, error)
}

type WebhookHandler struct {
	Verifier EventParser
	Events   PaymentEventHandler
	Log      *zap.Logger
}

// Stripe caps event payloads well below this.
const maxWebhookBody = 64 << 10

type webhookResp struct {
	Received bool           `json:"received"`
	Outcome  orders.Outcome `json:"outcome"`
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/stripe", h.stripe)
}

func (h *WebhookHandler) stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "unreadable body")
		return
	}

	ev, err := h.Verifier.Parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.Log.Warn("webhook rejected", zap.Error(err))
		if errors.Is(err, payment.ErrInvalidSignature) {
			writeBadRequest(w, "invalid signature")
			return
		}
		writeBadRequest(w, "invalid payload")
		return
	}

	outcome, err := h.Events.HandlePaymentEvent(r.Context(), ev)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResp{Received: true, Outcome: outcome})
}
