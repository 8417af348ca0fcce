package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

type StripeGateway struct {
	sessions *session.Client
}

// NewStripeGateway uses apiURL instead of api.stripe.com when set
// (stripe-mock, recorded fixtures).
func NewStripeGateway(secretKey, apiURL string) *StripeGateway {
	backend := stripe.GetBackend(stripe.APIBackend)
	if apiURL != "" {
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(apiURL),
		})
	}
	return &StripeGateway{sessions: &session.Client{B: backend, Key: secretKey}}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	orderID := strconv.FormatInt(req.OrderID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(orderID),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetadataOrderID, orderID)
	for _, li := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(li.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}
