package orders

import "time"

type Item struct {
	ProductID  int64 `json:"productId"`
	Quantity   int64 `json:"quantity"`
	PriceCents int64 `json:"priceCents"`
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	AmountCents     int64     `json:"amountCents"`
	Status          Status    `json:"status"`
	StripeSessionID *string   `json:"stripeSessionId"`
	Items           []Item    `json:"items"`
	ShippingAddress *Address  `json:"shippingAddress"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DefaultProducts is the catalog seeded into an empty store.
var DefaultProducts = []Product{
	{ID: 1, Name: "Pro Hoodie", Description: "Cozy dev hoodie", PriceCents: 5900, ImageURL: "https://picsum.photos/seed/hoodie/600/400"},
	{ID: 2, Name: "Coffee Mug", Description: "Ceramic mug", PriceCents: 1900, ImageURL: "https://picsum.photos/seed/mug/600/400"},
	{ID: 3, Name: "Sticker Pack", Description: "10x die-cut", PriceCents: 900, ImageURL: "https://picsum.photos/seed/sticker/600/400"},
}

type CreateRequest struct {
	Email           string   `json:"email"`
	Items           []Item   `json:"items"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
}

// Checkout is what a successful Create returns to the buyer.
type Checkout struct {
	Order       Order  `json:"order"`
	CheckoutURL string `json:"checkoutUrl"`
}

// AmountCents sums price * quantity over items.
func AmountCents(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.PriceCents * it.Quantity
	}
	return total
}

func cloneOrder(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		o.ShippingAddress = &a
	}
	if o.StripeSessionID != nil {
		s := *o.StripeSessionID
		o.StripeSessionID = &s
	}
	return o
}
