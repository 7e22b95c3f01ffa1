package errors

import (
	"fmt"

	"github.com/printcraft/orderapi/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation is returned when request validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrConflict is returned when there's a conflict (e.g., idempotency)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ShortfallKind distinguishes the ways a cart line can fail the stock check
type ShortfallKind string

const (
	ShortfallInsufficientStock  ShortfallKind = "insufficient_stock"
	ShortfallMissingAttribute   ShortfallKind = "missing_attribute"
	ShortfallPartnerUnavailable ShortfallKind = "partner_unavailable"
)

// ErrStockShortfall is returned when a cart line cannot be covered by
// available stock. The product name is always set so the client message
// can name the offending line.
type ErrStockShortfall struct {
	ProductName string
	Kind        ShortfallKind
	Requested   int
	Available   int
}

func (e *ErrStockShortfall) Error() string {
	switch e.Kind {
	case ShortfallMissingAttribute:
		return fmt.Sprintf("no such attribute combination for product %q", e.ProductName)
	case ShortfallPartnerUnavailable:
		return fmt.Sprintf("product %q is currently unavailable from the fulfillment partner", e.ProductName)
	default:
		return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d", e.ProductName, e.Requested, e.Available)
	}
}

// ErrGatewayDeclined is returned when a payment provider explicitly refuses
// the charge. Code is a stable reason the client can branch on (CARD_DECLINED).
type ErrGatewayDeclined struct {
	Provider string
	Code     string
	Message  string
}

func (e *ErrGatewayDeclined) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s declined payment: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s declined payment", e.Provider)
}

// ErrGatewayTransient is returned when a payment provider fails with a
// retriable condition (network error, 5xx) and retries, if any, are exhausted.
type ErrGatewayTransient struct {
	Provider string
	Attempts int
	Cause    error
}

func (e *ErrGatewayTransient) Error() string {
	return fmt.Sprintf("%s temporarily unavailable after %d attempt(s): %v", e.Provider, e.Attempts, e.Cause)
}

func (e *ErrGatewayTransient) Unwrap() error { return e.Cause }

// ErrFulfillment is returned when a partner fulfillment call fails after the
// order is already paid. Callers log and move on; payment is never reversed.
type ErrFulfillment struct {
	OrderID string
	Message string
	Cause   error
}

func (e *ErrFulfillment) Error() string {
	return fmt.Sprintf("fulfillment failed for order %s: %s: %v", e.OrderID, e.Message, e.Cause)
}

func (e *ErrFulfillment) Unwrap() error { return e.Cause }

// ErrInvalidStateTransition is returned when an invalid status transition is attempted
type ErrInvalidStateTransition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}
