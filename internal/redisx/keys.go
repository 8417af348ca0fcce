package redisx

import "time"

const (
	// Processed payment webhook: webhook:event:{event_id} -> order_id
	KeyWebhookEvent = "webhook:event:%s"

	// Cached order document: order:{order_id} -> order JSON
	KeyOrder = "order:%d"

	// Bumped on every order write; a read-through fill only lands if it is unchanged
	KeyOrderGen = "order:%d:gen"

	// Product catalog snapshot
	KeyProducts = "products:all"

	// Rendered invoice: invoice:{order_id} -> text
	KeyInvoice = "invoice:%d"
)

var (
	TTLWebhookEvent = 48 * time.Hour
	TTLOrderCache   = 5 * time.Minute
	TTLProducts     = 60 * time.Second
	TTLInvoice      = 30 * 24 * time.Hour
)
