package domain

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	// AWAITING_PAYMENT - Order created, payment not yet captured
	OrderStatusAwaitingPayment OrderStatus = "Awaiting Payment"
	// IN_PROCESS - Payment captured, order being prepared/fulfilled
	OrderStatusInProcess OrderStatus = "In Process"
	// SHIPPED - Order handed to a carrier with tracking
	OrderStatusShipped OrderStatus = "Shipped"
	// DELIVERED - Carrier reported delivery
	OrderStatusDelivered OrderStatus = "Delivered"
	// CANCELLED - Order cancelled; stock restored, no further transitions
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// PaymentStatus is tracked separately from the order lifecycle status
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

// IsValid checks if the order status is a member of the closed set
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusAwaitingPayment,
		OrderStatusInProcess,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusAwaitingPayment:
		return newStatus == OrderStatusInProcess ||
			newStatus == OrderStatusCancelled
	case OrderStatusInProcess:
		return newStatus == OrderStatusShipped ||
			newStatus == OrderStatusCancelled
	case OrderStatusShipped:
		return newStatus == OrderStatusDelivered ||
			newStatus == OrderStatusCancelled
	case OrderStatusDelivered, OrderStatusCancelled:
		return false // Terminal states
	default:
		return false
	}
}

// IsOpen reports whether the status falls in the "open" listing bucket.
// Open = not yet shipped/delivered/cancelled; closed is the complement.
func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return false
	default:
		return true
	}
}

// ClosedStatuses lists the statuses in the "closed" bucket, for listing queries
func ClosedStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}
}

// PaymentProvider identifies which gateway an order was created through
type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderPayPal PaymentProvider = "paypal"
	ProviderSquare PaymentProvider = "square"
)

// IsValid checks if the provider tag is known
func (p PaymentProvider) IsValid() bool {
	switch p {
	case ProviderStripe, ProviderPayPal, ProviderSquare:
		return true
	default:
		return false
	}
}
