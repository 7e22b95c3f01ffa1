package fulfillment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/payment"
	"github.com/printcraft/orderapi/internal/printify"
	"github.com/printcraft/orderapi/internal/repository"
	"github.com/printcraft/orderapi/pkg/errors"
)

// PartnerAPI is the slice of the print partner client the dispatcher uses
type PartnerAPI interface {
	ShopID() string
	GetProduct(ctx context.Context, productID string) (*printify.Product, error)
	CreateProduct(ctx context.Context, req printify.CreateProductRequest) (*printify.Product, error)
	SetProductVisible(ctx context.Context, productID string, visible bool) error
	DeleteProduct(ctx context.Context, productID string) error
	UploadImage(ctx context.Context, fileName, url string) (*printify.UploadedImage, error)
	CreateOrder(ctx context.Context, req printify.CreateOrderRequest) (*printify.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	ListOrders(ctx context.Context, page int) (*printify.OrderPage, error)
}

// Dispatcher turns paid print-on-demand line items into remote production
// orders, creating ephemeral partner products on the fly for custom designs.
type Dispatcher struct {
	partner PartnerAPI
	orders  repository.OrderRepository
	events  repository.OrderEventRepository
	logger  *zap.Logger
}

// NewDispatcher creates a new fulfillment dispatcher
func NewDispatcher(partner PartnerAPI, orders repository.OrderRepository, events repository.OrderEventRepository, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		partner: partner,
		orders:  orders,
		events:  events,
		logger:  logger,
	}
}

// DispatchOrder places one remote production order per print-on-demand line.
// It returns on the first line that fails: already-dispatched lines stay
// dispatched and the periodic sync sweep reconciles the remainder. Partial
// artifacts (an uploaded asset with no completed order) are acceptable to
// leak; a separate periodic cleanup owns those.
func (d *Dispatcher) DispatchOrder(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error {
	for _, item := range items {
		if !item.IsPrintify {
			continue
		}

		var rec domain.PrintifyOrderRecord
		var err error
		if item.CustomDesign != nil && item.PrintifyProductID == nil {
			rec, err = d.dispatchCustomDesign(ctx, order, item)
		} else {
			rec, err = d.dispatchCatalogItem(ctx, order, item)
		}
		if err != nil {
			return &errors.ErrFulfillment{
				OrderID: order.ID.String(),
				Message: fmt.Sprintf("line item %q", item.Name),
				Cause:   err,
			}
		}

		if err := d.orders.AppendPrintifyOrder(ctx, order.ID, rec); err != nil {
			// The remote order exists; losing the local record would strand
			// it, so surface the failure for operator follow-up.
			return &errors.ErrFulfillment{
				OrderID: order.ID.String(),
				Message: "failed to record partner order",
				Cause:   err,
			}
		}

		d.events.Create(ctx, &domain.OrderEvent{
			OrderID:   order.ID,
			EventType: "fulfillment_dispatched",
			EventData: map[string]interface{}{
				"printify_order_id":    rec.PrintifyOrderID,
				"ephemeral_product_id": rec.EphemeralProductID,
				"item":                 item.Name,
			},
		})
	}

	return nil
}

// dispatchCatalogItem places an order against a pre-existing partner product
func (d *Dispatcher) dispatchCatalogItem(ctx context.Context, order *domain.Order, item *domain.OrderItem) (domain.PrintifyOrderRecord, error) {
	if item.PrintifyProductID == nil {
		return domain.PrintifyOrderRecord{}, fmt.Errorf("print-on-demand item %q has no partner product id", item.Name)
	}

	product, err := d.partner.GetProduct(ctx, *item.PrintifyProductID)
	if err != nil {
		return domain.PrintifyOrderRecord{}, fmt.Errorf("failed to load partner product: %w", err)
	}

	variant := resolveVariant(product.Variants, item.SKU)
	if variant == nil {
		return domain.PrintifyOrderRecord{}, fmt.Errorf("partner product %s has no variants", product.ID)
	}

	remote, err := d.placeOrder(ctx, order, item, product.ID, variant.ID)
	if err != nil {
		return domain.PrintifyOrderRecord{}, err
	}

	return domain.PrintifyOrderRecord{
		PrintifyOrderID: remote.ID,
		ShopID:          d.partner.ShopID(),
		Status:          remote.Status,
	}, nil
}

// dispatchCustomDesign uploads the artwork, creates an ephemeral product
// around it, orders against it, then soft-disables the product. The delayed
// hard-delete happens in the sync sweep once the order reaches a terminal
// state, tolerating the window where the partner still references it.
func (d *Dispatcher) dispatchCustomDesign(ctx context.Context, order *domain.Order, item *domain.OrderItem) (domain.PrintifyOrderRecord, error) {
	design := item.CustomDesign

	fileName := fmt.Sprintf("custom-%s-%s.png", order.InvoiceNumber, item.ID)
	image, err := d.partner.UploadImage(ctx, fileName, design.ImageURL)
	if err != nil {
		return domain.PrintifyOrderRecord{}, fmt.Errorf("failed to upload design asset: %w", err)
	}

	product, err := d.partner.CreateProduct(ctx, printify.CreateProductRequest{
		Title:         fmt.Sprintf("Custom %s - %s", item.Name, order.InvoiceNumber),
		Description:   "One-off custom design",
		BlueprintID:   design.Blueprint,
		PrintProvider: 1,
		Variants: []printify.VariantInput{
			{ID: 1, Price: int(payment.AmountToCents(item.Price)), IsEnabled: true},
		},
		PrintAreas: []printify.PrintArea{
			{
				VariantIDs: []int64{1},
				Placeholders: []printify.Placeholder{
					{
						Position: "front",
						Images: []printify.PlacementImage{
							{ID: image.ID, X: design.X, Y: design.Y, Scale: design.Scale, Angle: design.Angle},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return domain.PrintifyOrderRecord{}, fmt.Errorf("failed to create ephemeral product: %w", err)
	}

	variant := resolveVariant(product.Variants, item.SKU)
	if variant == nil {
		return domain.PrintifyOrderRecord{}, fmt.Errorf("ephemeral product %s has no variants", product.ID)
	}

	remote, err := d.placeOrder(ctx, order, item, product.ID, variant.ID)
	if err != nil {
		return domain.PrintifyOrderRecord{}, err
	}

	if err := d.partner.SetProductVisible(ctx, product.ID, false); err != nil {
		// Order is placed; a still-visible ephemeral product is cosmetic and
		// the sweep will disable or delete it later.
		d.logger.Warn("Failed to soft-disable ephemeral product",
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
	}

	ephemeralID := product.ID
	return domain.PrintifyOrderRecord{
		PrintifyOrderID:    remote.ID,
		ShopID:             d.partner.ShopID(),
		EphemeralProductID: &ephemeralID,
		Status:             remote.Status,
	}, nil
}

func (d *Dispatcher) placeOrder(ctx context.Context, order *domain.Order, item *domain.OrderItem, productID string, variantID int64) (*printify.Order, error) {
	nameParts := strings.SplitN(order.Customer.Name, " ", 2)
	firstName := nameParts[0]
	lastName := ""
	if len(nameParts) > 1 {
		lastName = nameParts[1]
	}

	remote, err := d.partner.CreateOrder(ctx, printify.CreateOrderRequest{
		ExternalID: fmt.Sprintf("%s-%s", order.InvoiceNumber, item.ID),
		Label:      "Invoice " + order.InvoiceNumber,
		LineItems: []printify.OrderLineItem{
			{ProductID: productID, VariantID: variantID, Quantity: item.Quantity},
		},
		AddressTo: printify.OrderAddress{
			FirstName: firstName,
			LastName:  lastName,
			Email:     order.Customer.Email,
			Phone:     order.Customer.Phone,
			Country:   "US",
			Region:    order.Customer.State,
			Address1:  order.Customer.Address,
			City:      order.Customer.City,
			Zip:       order.Customer.Zipcode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to place partner order: %w", err)
	}
	return remote, nil
}

// resolveVariant picks the variant whose SKU matches, defaulting to the
// first variant when no SKU matches.
func resolveVariant(variants []printify.Variant, sku string) *printify.Variant {
	if len(variants) == 0 {
		return nil
	}
	if sku != "" {
		for i := range variants {
			if strings.EqualFold(variants[i].SKU, sku) {
				return &variants[i]
			}
		}
	}
	return &variants[0]
}
