package notification

import (
	"bytes"
	"fmt"

	"github.com/printcraft/orderapi/internal/domain"
)

// BasicInvoiceRenderer produces a minimal single-page PDF invoice. Branding
// and layout live with the storefront templates; this keeps the attachment
// pipeline real without owning presentation.
type BasicInvoiceRenderer struct {
	ShopName string
}

func (r *BasicInvoiceRenderer) Render(order *domain.Order, items []*domain.OrderItem) ([]byte, error) {
	var text bytes.Buffer
	fmt.Fprintf(&text, "(%s) Tj 0 -18 Td ", pdfEscape(r.ShopName))
	fmt.Fprintf(&text, "(Invoice %s) Tj 0 -18 Td ", pdfEscape(order.InvoiceNumber))
	fmt.Fprintf(&text, "(%s) Tj 0 -18 Td ", pdfEscape(order.Customer.Name))
	for _, it := range items {
		fmt.Fprintf(&text, "(%s  x%d  $%.2f) Tj 0 -14 Td ", pdfEscape(it.Name), it.Quantity, it.Price*float64(it.Quantity))
	}
	fmt.Fprintf(&text, "(Shipping %s $%.2f) Tj 0 -14 Td ", pdfEscape(order.Shipping.CarrierName), order.Shipping.Price)
	fmt.Fprintf(&text, "(Total $%.2f) Tj", order.ChargeAmount())

	stream := fmt.Sprintf("BT /F1 12 Tf 50 760 Td %s ET", text.String())

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, 5)
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}
	writeObj("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	writeObj("2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n")
	writeObj("3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >> endobj\n")
	writeObj(fmt.Sprintf("4 0 obj << /Length %d >> stream\n%s\nendstream endobj\n", len(stream), stream))
	writeObj("5 0 obj << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> endobj\n")

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer << /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart)

	return buf.Bytes(), nil
}

func pdfEscape(s string) string {
	var out bytes.Buffer
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			out.WriteByte('\\')
			out.WriteRune(r)
		default:
			if r < 128 {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}
