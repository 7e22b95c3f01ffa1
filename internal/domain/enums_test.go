package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"awaiting payment to in process", OrderStatusAwaitingPayment, OrderStatusInProcess, true},
		{"awaiting payment to cancelled", OrderStatusAwaitingPayment, OrderStatusCancelled, true},
		{"awaiting payment to shipped", OrderStatusAwaitingPayment, OrderStatusShipped, false},
		{"in process to shipped", OrderStatusInProcess, OrderStatusShipped, true},
		{"in process to cancelled", OrderStatusInProcess, OrderStatusCancelled, true},
		{"in process to delivered", OrderStatusInProcess, OrderStatusDelivered, false},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"shipped to cancelled", OrderStatusShipped, OrderStatusCancelled, true},
		{"shipped back to in process", OrderStatusShipped, OrderStatusInProcess, false},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusCancelled, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusInProcess, false},
		{"unknown status", OrderStatus("Bogus"), OrderStatusInProcess, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatusIsValid(t *testing.T) {
	for _, s := range []OrderStatus{
		OrderStatusAwaitingPayment, OrderStatusInProcess,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	} {
		assert.True(t, s.IsValid(), "%s should be valid", s)
	}
	assert.False(t, OrderStatus("Pending").IsValid())
	assert.False(t, OrderStatus("").IsValid())
}

func TestOrderStatusBuckets(t *testing.T) {
	assert.True(t, OrderStatusAwaitingPayment.IsOpen())
	assert.True(t, OrderStatusInProcess.IsOpen())
	assert.False(t, OrderStatusShipped.IsOpen())
	assert.False(t, OrderStatusDelivered.IsOpen())
	assert.False(t, OrderStatusCancelled.IsOpen())

	closed := ClosedStatuses()
	assert.Len(t, closed, 3)
	for _, s := range closed {
		assert.False(t, s.IsOpen())
	}
}

func TestPaymentProviderIsValid(t *testing.T) {
	assert.True(t, ProviderStripe.IsValid())
	assert.True(t, ProviderPayPal.IsValid())
	assert.True(t, ProviderSquare.IsValid())
	assert.False(t, PaymentProvider("venmo").IsValid())
}
