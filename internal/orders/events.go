package orders

import "time"

const (
	EventOrderCreated = "order_created"
	EventVersion      = "1"

	HeaderEventID      = "x-event-id"
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
	HeaderProducer     = "x-producer"
)

// OrderCreatedEvent is published once an order is paid. Consumers must
// tolerate redelivery.
type OrderCreatedEvent struct {
	OrderID     int64     `json:"orderId"`
	Email       string    `json:"email"`
	AmountCents int64     `json:"amountCents"`
	Items       []Item    `json:"items"`
	Timestamp   time.Time `json:"timestamp"`
}
