package notification

import (
	"fmt"
	"html"
	"strings"

	"github.com/printcraft/orderapi/internal/domain"
)

func renderOrderEmailHTML(order *domain.Order, items []*domain.OrderItem) string {
	var b strings.Builder
	b.WriteString("<h2>Thank you for your order!</h2>")
	fmt.Fprintf(&b, "<p>Invoice <strong>%s</strong></p>", html.EscapeString(order.InvoiceNumber))
	b.WriteString("<table><tr><th>Item</th><th>Qty</th><th>Price</th></tr>")
	for _, it := range items {
		name := it.Name
		if it.ChosenAttributes != nil {
			name = fmt.Sprintf("%s (%s / %s)", it.Name, it.ChosenAttributes.Color, it.ChosenAttributes.Size)
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>$%.2f</td></tr>",
			html.EscapeString(name), it.Quantity, it.Price)
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Shipping (%s): $%.2f</p>",
		html.EscapeString(order.Shipping.CarrierName), order.Shipping.Price)
	fmt.Fprintf(&b, "<p><strong>Total: $%.2f</strong></p>", order.ChargeAmount())
	return b.String()
}

func renderSellerEmailHTML(order *domain.Order, items []*domain.OrderItem) string {
	var b strings.Builder
	b.WriteString("<h2>You have a new order</h2>")
	fmt.Fprintf(&b, "<p>Invoice <strong>%s</strong></p>", html.EscapeString(order.InvoiceNumber))
	b.WriteString("<ul>")
	for _, it := range items {
		fmt.Fprintf(&b, "<li>%s x%d</li>", html.EscapeString(it.Name), it.Quantity)
	}
	b.WriteString("</ul>")
	fmt.Fprintf(&b, "<p>Ship to: %s, %s, %s %s</p>",
		html.EscapeString(order.Customer.Address),
		html.EscapeString(order.Customer.City),
		html.EscapeString(order.Customer.State),
		html.EscapeString(order.Customer.Zipcode),
	)
	return b.String()
}
