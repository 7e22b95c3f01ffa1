package payment

import (
	"context"

	"github.com/printcraft/orderapi/internal/domain"
)

// Gateway is the common contract the three provider adapters satisfy. Each
// call normalizes the provider's response into a domain.PaymentOutcome; raw
// payloads are preserved for the order's audit trail.
type Gateway interface {
	// Provider identifies the adapter for CreatedVia and error reporting
	Provider() domain.PaymentProvider
	// CreateIntent registers the charge with the provider and returns the
	// provider-side order/intent id. Stripe confirms in the same call, so
	// its outcome may already be terminal.
	CreateIntent(ctx context.Context, order *domain.Order, amountCents int64) (string, domain.PaymentOutcome, error)
	// Confirm attaches/validates a payment method (PayPal card flow)
	Confirm(ctx context.Context, providerOrderID string, method PaymentMethod) (domain.PaymentOutcome, error)
	// Capture settles a previously created charge
	Capture(ctx context.Context, providerOrderID string) (domain.PaymentOutcome, error)
}

// PaymentMethod carries the client-supplied payment instrument. Exactly one
// of Token or Card is set depending on the flow.
type PaymentMethod struct {
	Token string
	Card  *Card
}

// Card is a raw card entry for the PayPal card flow; validated locally
// before any provider call.
type Card struct {
	Number         string
	Expiry         string // YYYY-MM
	SecurityCode   string
	Name           string
	BillingAddress BillingAddress
}

// BillingAddress is the card billing address
type BillingAddress struct {
	AddressLine1 string
	City         string
	State        string
	PostalCode   string
	CountryCode  string
}
