package invoice

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

// NumberChecker reports whether an invoice number was ever allocated,
// including numbers belonging to orders that were later deleted.
type NumberChecker interface {
	InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error)
}

const (
	digits      = 10
	maxAttempts = 25
)

// Allocator generates collision-free 10-digit invoice numbers. The number
// space is 10^10 so collisions are effectively theoretical, but the loop is
// bounded so a misbehaving store cannot spin it forever.
type Allocator struct {
	checker NumberChecker
	logger  *zap.Logger
}

// NewAllocator creates a new invoice number allocator
func NewAllocator(checker NumberChecker, logger *zap.Logger) *Allocator {
	return &Allocator{
		checker: checker,
		logger:  logger,
	}
}

// Allocate returns a fresh, never-before-used invoice number
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(digits), nil)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate invoice number: %w", err)
		}
		candidate := fmt.Sprintf("%0*d", digits, n)

		exists, err := a.checker.InvoiceNumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check invoice number: %w", err)
		}
		if !exists {
			return candidate, nil
		}

		a.logger.Warn("Invoice number collision, regenerating",
			zap.String("invoice_number", candidate),
			zap.Int("attempt", attempt),
		)
	}

	return "", fmt.Errorf("failed to allocate invoice number after %d attempts", maxAttempts)
}
