// Package invoice turns paid orders into plain-text invoices.
package invoice

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
)

// Render lays out one invoice. Output is stable for a given event so a
// redelivered message renders the same document.
func Render(ev orders.OrderCreatedEvent) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "INVOICE\n\n")
	fmt.Fprintf(&buf, "Order:   %d\n", ev.OrderID)
	fmt.Fprintf(&buf, "Email:   %s\n", ev.Email)
	fmt.Fprintf(&buf, "Date:    %s\n\n", ev.Timestamp.UTC().Format("2006-01-02 15:04 MST"))

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Product\tQty\tUnit\tLine\t")
	for _, it := range ev.Items {
		fmt.Fprintf(tw, "#%d\t%d\t%s\t%s\t\n", it.ProductID, it.Quantity, dollars(it.PriceCents), dollars(it.PriceCents*it.Quantity))
	}
	_ = tw.Flush()

	fmt.Fprintf(&buf, "\nAmount: %s\n", dollars(ev.AmountCents))
	return buf.Bytes()
}

func dollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
