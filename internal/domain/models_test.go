package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecomputeTotals(t *testing.T) {
	order := &Order{
		Shipping: ShippingSelection{CarrierName: "Standard", Price: 5.00},
	}
	items := []*OrderItem{
		{Price: 19.99, Quantity: 2},
		{Price: 4.50, Quantity: 1},
	}

	order.RecomputeTotals(items)

	assert.InDelta(t, 49.48, order.TotalAmount, 0.001)
	assert.Equal(t, 3, order.TotalOrderQty)
	// No discount set: the discounted total mirrors the raw total
	assert.InDelta(t, 49.48, order.TotalAmountAfterDiscount, 0.001)
}

func TestRecomputeTotalsKeepsDiscount(t *testing.T) {
	order := &Order{TotalAmountAfterDiscount: 40.00}
	items := []*OrderItem{{Price: 50.00, Quantity: 1}}

	order.RecomputeTotals(items)

	assert.InDelta(t, 50.00, order.TotalAmount, 0.001)
	assert.InDelta(t, 40.00, order.TotalAmountAfterDiscount, 0.001)
}

func TestChargeAmount(t *testing.T) {
	order := &Order{TotalAmount: 100, TotalAmountAfterDiscount: 80}
	assert.InDelta(t, 80.0, order.ChargeAmount(), 0.001)

	order = &Order{TotalAmount: 100}
	assert.InDelta(t, 100.0, order.ChargeAmount(), 0.001)
}
