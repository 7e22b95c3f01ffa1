package payment

import (
	"github.com/shopspring/decimal"

	"github.com/printcraft/orderapi/internal/domain"
)

// MinorUnits converts the order's charge amount to integer minor currency
// units (cents), rounding half-up. 19.999 becomes 2000, never 1999.
func MinorUnits(order *domain.Order) int64 {
	return AmountToCents(order.ChargeAmount())
}

// AmountToCents converts a decimal currency amount to integer cents
func AmountToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
