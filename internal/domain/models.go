package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is the central transactional record
type Order struct {
	ID            uuid.UUID
	InvoiceNumber string // 10-digit numeric string, globally unique, never reused
	Status        OrderStatus
	PaymentStatus PaymentStatus

	// Customer snapshot, copied at order time. Later profile edits never
	// mutate historical orders.
	Customer CustomerSnapshot

	// Shipping carrier selection, copied at order time
	Shipping ShippingSelection

	TotalAmount              float64
	TotalAmountAfterDiscount float64
	TotalOrderQty            int

	// Payment provenance
	CreatedVia      PaymentProvider
	ProviderOrderID *string
	PaymentDetails  map[string]interface{} // raw provider payload, JSONB, audit trail

	// Fulfillment provenance: one entry per remote production order placed
	PrintifyOrders []PrintifyOrderRecord

	TrackingCarrier *string
	TrackingNumber  *string
	TrackingURL     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerSnapshot is the customer contact info frozen onto the order
type CustomerSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
}

// ShippingSelection is the carrier choice frozen onto the order
type ShippingSelection struct {
	CarrierName string  `json:"carrier_name"`
	Price       float64 `json:"price"`
}

// OrderItem is one line of an order. Simple items carry only a quantity;
// variant items additionally pin a (color, size) attribute combination and
// may carry a custom design for print-on-demand production.
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	ProductID  uuid.UUID
	SKU        string
	Name       string
	Price      float64
	Quantity   int
	StoreID    *uuid.UUID // seller attribution for multi-seller carts
	IsPrintify bool       // fulfilled by the print partner; no local stock

	ChosenAttributes *ChosenAttributes
	CustomDesign     *CustomDesign

	// Resolved against the partner catalog when IsPrintify
	PrintifyProductID *string

	CreatedAt time.Time
}

// ChosenAttributes pins a variant line to one attribute combination
type ChosenAttributes struct {
	Color string `json:"color"`
	Size  string `json:"size"`
}

// CustomDesign is a user-supplied artwork payload for a one-shot partner product
type CustomDesign struct {
	ImageURL  string  `json:"image_url"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Scale     float64 `json:"scale"`
	Angle     float64 `json:"angle"`
	Blueprint int     `json:"blueprint"`
}

// PrintifyOrderRecord records one remote production order placed for this
// order, including any ephemeral product created for a custom design (needed
// for later cleanup).
type PrintifyOrderRecord struct {
	PrintifyOrderID    string  `json:"printify_order_id"`
	ShopID             string  `json:"shop_id"`
	EphemeralProductID *string `json:"ephemeral_product_id,omitempty"`
	Status             string  `json:"status,omitempty"`
}

// Product is the subset of the catalog record that fulfillment touches
type Product struct {
	ID         uuid.UUID
	Name       string
	SKU        string
	Price      float64
	Quantity   int // simple products only
	IsVariable bool
	IsPrintify bool
	StoreID    *uuid.UUID
	Attributes []AttributeStock
}

// AttributeStock is one (color, size) combination with its own quantity.
// Matching is case-insensitive.
type AttributeStock struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Color     string
	Size      string
	SKU       string
	Quantity  int
}

// OrderEvent represents an audit event for an order
type OrderEvent struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	EventType string
	EventData map[string]interface{} // JSONB
	CreatedAt time.Time
}

// IdempotencyKey stores idempotency information for checkout submissions
type IdempotencyKey struct {
	Key         string
	OrderID     uuid.UUID
	RequestHash string
	CreatedAt   time.Time
}

// RecomputeTotals recalculates the order totals from its current line items
// plus the shipping price. Totals are always derived, never incrementally
// adjusted, so structural edits cannot drift.
func (o *Order) RecomputeTotals(items []*OrderItem) {
	var amount float64
	var qty int
	for _, it := range items {
		amount += it.Price * float64(it.Quantity)
		qty += it.Quantity
	}
	amount += o.Shipping.Price
	o.TotalAmount = amount
	if o.TotalAmountAfterDiscount == 0 || o.TotalAmountAfterDiscount > amount {
		o.TotalAmountAfterDiscount = amount
	}
	o.TotalOrderQty = qty
}

// ChargeAmount is the amount the gateways charge: the discounted total when
// present, the raw total otherwise.
func (o *Order) ChargeAmount() float64 {
	if o.TotalAmountAfterDiscount > 0 {
		return o.TotalAmountAfterDiscount
	}
	return o.TotalAmount
}
