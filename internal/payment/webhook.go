package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// WebhookVerifier checks the Stripe-Signature header against the endpoint
// secret. With an empty secret payloads are accepted unsigned, which is
// only meant for local development.
type WebhookVerifier struct {
	Secret string
}

func (v WebhookVerifier) Parse(payload []byte, signature string) (Event, error) {
	var ev stripe.Event
	if v.Secret != "" {
		var err error
		ev, err = webhook.ConstructEventWithOptions(payload, signature, v.Secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	} else if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != EventCheckoutCompleted && out.Type != EventCheckoutExpired {
		return out, nil
	}
	if ev.Data == nil {
		return out, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out.OrderID = cs.Metadata[MetadataOrderID]
	out.AmountTotal = cs.AmountTotal
	return out, nil
}
