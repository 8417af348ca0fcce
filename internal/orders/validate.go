package orders

import (
	"fmt"
	"math"
	"net/mail"
	"strings"
)

// Validate checks the request shape and lists every problem found.
func Validate(req CreateRequest) error {
	var problems []string
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != strings.TrimSpace(req.Email) {
		problems = append(problems, "email must be a valid email address")
	}
	if len(req.Items) == 0 {
		problems = append(problems, "at least one item is required")
	}
	var total int64
	overflow := false
	for i, it := range req.Items {
		if it.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: productId must be a positive integer", i))
		}
		if it.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: quantity must be a positive integer", i))
		}
		if it.PriceCents <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: priceCents must be a positive integer", i))
		}
		if it.Quantity <= 0 || it.PriceCents <= 0 || overflow {
			continue
		}
		// amountCents must stay representable as int64
		switch {
		case it.PriceCents > math.MaxInt64/it.Quantity:
			problems = append(problems, fmt.Sprintf("item %d: amount overflows", i))
			overflow = true
		case total > math.MaxInt64-it.PriceCents*it.Quantity:
			problems = append(problems, fmt.Sprintf("item %d: order total overflows", i))
			overflow = true
		default:
			total += it.PriceCents * it.Quantity
		}
	}
	if a := req.ShippingAddress; a != nil {
		required := []struct{ name, value string }{
			{"name", a.Name},
			{"line1", a.Line1},
			{"city", a.City},
			{"state", a.State},
			{"postalCode", a.PostalCode},
			{"country", a.Country},
		}
		for _, f := range required {
			if strings.TrimSpace(f.value) == "" {
				problems = append(problems, "shippingAddress."+f.name+" is required")
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
