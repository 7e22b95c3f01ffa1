package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printcraft/orderapi/internal/domain"
)

// OrderRepository defines order data access methods. Mutations after the
// initial write are field-level updates so concurrent actors (webhook, admin,
// sync sweep) don't clobber each other's unrelated fields.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*domain.Order, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*domain.Order, error)
	// InvoiceNumberExists checks the number against all historical orders,
	// including numbers whose orders were later deleted.
	InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentDetails map[string]interface{}, providerOrderID *string) error
	// MarkProviderOrder records the provider-side order id on a provisional
	// order so a later capture call or webhook can find it.
	MarkProviderOrder(ctx context.Context, id uuid.UUID, providerOrderID string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	UpdateTracking(ctx context.Context, id uuid.UUID, carrier, trackingNumber, trackingURL *string) error
	AppendPrintifyOrder(ctx context.Context, id uuid.UUID, rec domain.PrintifyOrderRecord) error
	UpdatePrintifyOrderStatus(ctx context.Context, id uuid.UUID, printifyOrderID, status string) error
	// Delete removes a provisional order. Compensation only; the invoice
	// number stays burned in invoice_numbers.
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDateRange(ctx context.Context, from, to time.Time, open bool, limit, offset int) ([]*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]*domain.Order, error)
}

// OrderItemRepository defines order line item data access methods
type OrderItemRepository interface {
	CreateBatch(ctx context.Context, items []*domain.OrderItem) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error)
	DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error
}

// ProductRepository defines the catalog surface fulfillment touches: reads by
// id/SKU plus atomic quantity adjustments.
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
	// AdjustQuantity applies delta to a simple product's quantity as one
	// atomic statement. A decrement that would go negative affects no rows
	// and returns an error.
	AdjustQuantity(ctx context.Context, productID uuid.UUID, delta int) error
	// AdjustAttributeQuantity does the same for one (color, size) entry of a
	// variable product. Matching is case-insensitive.
	AdjustAttributeQuantity(ctx context.Context, productID uuid.UUID, color, size string, delta int) error
}

// OrderEventRepository defines order audit event data access methods
type OrderEventRepository interface {
	Create(ctx context.Context, event *domain.OrderEvent) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderEvent, error)
}

// StoreRepository defines seller store data access methods
type StoreRepository interface {
	// SellerEmail resolves the notification address for a seller store
	SellerEmail(ctx context.Context, storeID uuid.UUID) (string, error)
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}

// Repositories aggregates all repositories
type Repositories struct {
	Order          OrderRepository
	OrderItem      OrderItemRepository
	Product        ProductRepository
	Store          StoreRepository
	OrderEvent     OrderEventRepository
	IdempotencyKey IdempotencyKeyRepository
}
