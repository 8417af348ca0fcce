// Package payment talks to the hosted checkout provider: it opens payment
// sessions and turns signed webhook deliveries into Events.
package payment

import "errors"

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"

	// MetadataOrderID is the session metadata key carrying the order id.
	MetadataOrderID = "orderId"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type LineItem struct {
	Name       string
	UnitAmount int64 // cents
	Quantity   int64
}

type SessionRequest struct {
	OrderID       int64
	CustomerEmail string
	Currency      string
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string
	URL string
}

// Event is the provider-neutral part of a webhook delivery.
type Event struct {
	ID   string
	Type string
	// OrderID is the raw metadata value; it may be empty or malformed.
	OrderID string
	// AmountTotal is 0 when the provider did not report it.
	AmountTotal int64
}
