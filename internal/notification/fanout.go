package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/domain"
)

// EmailSender sends one email. Attachment is the rendered PDF invoice; nil
// for PDF-less sends.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMSSender sends one text message
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// InvoiceRenderer renders the order into a PDF invoice
type InvoiceRenderer interface {
	Render(order *domain.Order, items []*domain.OrderItem) ([]byte, error)
}

// SellerResolver maps a store id to the seller's notification email
type SellerResolver interface {
	SellerEmail(ctx context.Context, storeID uuid.UUID) (string, error)
}

// EmailMessage is one outbound email
type EmailMessage struct {
	To         string
	Bcc        []string
	Subject    string
	HTMLBody   string
	Attachment []byte
	AttachName string
}

// Fanout sends the post-payment confirmations: customer email with PDF
// invoice, internal bcc, one PDF-less notification per seller, and an SMS.
// Every send is best-effort and isolated; one recipient's failure never
// blocks the others or touches order state.
type Fanout struct {
	email    EmailSender
	sms      SMSSender
	renderer InvoiceRenderer
	sellers  SellerResolver
	cfg      config.EmailConfig
	logger   *zap.Logger
}

// NewFanout creates a new notification fan-out
func NewFanout(email EmailSender, sms SMSSender, renderer InvoiceRenderer, sellers SellerResolver, cfg config.EmailConfig, logger *zap.Logger) *Fanout {
	return &Fanout{
		email:    email,
		sms:      sms,
		renderer: renderer,
		sellers:  sellers,
		cfg:      cfg,
		logger:   logger,
	}
}

// SendOrderConfirmation runs the full fan-out. Always returns nil; failures
// are logged per recipient.
func (f *Fanout) SendOrderConfirmation(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error {
	f.sendCustomerEmail(ctx, order, items)
	f.sendSellerNotifications(ctx, order, items)
	f.sendSMS(ctx, order)
	return nil
}

func (f *Fanout) sendCustomerEmail(ctx context.Context, order *domain.Order, items []*domain.OrderItem) {
	to := strings.TrimSpace(order.Customer.Email)
	if to == "" {
		to = f.cfg.FallbackAddress
	}

	var pdf []byte
	if f.renderer != nil {
		var err error
		pdf, err = f.renderer.Render(order, items)
		if err != nil {
			f.logger.Error("Failed to render invoice PDF, sending without attachment",
				zap.String("invoice_number", order.InvoiceNumber),
				zap.Error(err),
			)
			pdf = nil
		}
	}

	msg := EmailMessage{
		To:         to,
		Bcc:        f.cfg.InternalBcc,
		Subject:    fmt.Sprintf("Order Confirmation - Invoice %s", order.InvoiceNumber),
		HTMLBody:   renderOrderEmailHTML(order, items),
		Attachment: pdf,
	}
	if pdf != nil {
		msg.AttachName = fmt.Sprintf("invoice-%s.pdf", order.InvoiceNumber)
	}

	if err := f.email.Send(ctx, msg); err != nil {
		f.logger.Error("Failed to send customer confirmation email",
			zap.String("invoice_number", order.InvoiceNumber),
			zap.String("to", to),
			zap.Error(err),
		)
	}
}

// sendSellerNotifications sends one PDF-less notification per distinct
// seller store represented in the cart.
func (f *Fanout) sendSellerNotifications(ctx context.Context, order *domain.Order, items []*domain.OrderItem) {
	if f.sellers == nil {
		return
	}

	seen := map[uuid.UUID]bool{}
	for _, item := range items {
		if item.StoreID == nil || seen[*item.StoreID] {
			continue
		}
		seen[*item.StoreID] = true

		email, err := f.sellers.SellerEmail(ctx, *item.StoreID)
		if err != nil || email == "" {
			f.logger.Warn("Failed to resolve seller email",
				zap.String("store_id", item.StoreID.String()),
				zap.Error(err),
			)
			continue
		}

		msg := EmailMessage{
			To:       email,
			Subject:  fmt.Sprintf("New Order - Invoice %s", order.InvoiceNumber),
			HTMLBody: renderSellerEmailHTML(order, itemsForStore(items, *item.StoreID)),
		}
		if err := f.email.Send(ctx, msg); err != nil {
			f.logger.Error("Failed to send seller notification",
				zap.String("invoice_number", order.InvoiceNumber),
				zap.String("store_id", item.StoreID.String()),
				zap.Error(err),
			)
		}
	}
}

func (f *Fanout) sendSMS(ctx context.Context, order *domain.Order) {
	phone := NormalizePhone(order.Customer.Phone)
	if phone == "" {
		f.logger.Debug("No customer phone on order, skipping SMS",
			zap.String("invoice_number", order.InvoiceNumber))
		return
	}

	body := fmt.Sprintf("Thank you for your order! Invoice %s is confirmed and being prepared.", order.InvoiceNumber)
	if err := f.sms.Send(ctx, phone, body); err != nil {
		f.logger.Error("Failed to send confirmation SMS",
			zap.String("invoice_number", order.InvoiceNumber),
			zap.Error(err),
		)
	}
}

// NormalizePhone coerces a phone number to +1XXXXXXXXXX when it carries no
// country code prefix. Returns "" when there aren't enough digits to dial.
func NormalizePhone(phone string) string {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return trimmed
	}

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && strings.HasPrefix(d, "1"):
		return "+" + d
	case len(d) > 11:
		return "+" + d
	default:
		return ""
	}
}

func itemsForStore(items []*domain.OrderItem, storeID uuid.UUID) []*domain.OrderItem {
	var out []*domain.OrderItem
	for _, it := range items {
		if it.StoreID != nil && *it.StoreID == storeID {
			out = append(out, it)
		}
	}
	return out
}
