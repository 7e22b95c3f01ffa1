package inventory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/printify"
	"github.com/printcraft/orderapi/internal/repository"
	"github.com/printcraft/orderapi/pkg/errors"
)

// PartnerCatalog is the slice of the print partner API the ledger needs to
// answer availability for print-on-demand lines.
type PartnerCatalog interface {
	GetProduct(ctx context.Context, productID string) (*printify.Product, error)
}

// Ledger answers "can this cart be fulfilled?" and applies stock movements
// once payment outcome is known.
//
// Known race: CheckAvailability and ApplyDecrement are separate steps, so two
// concurrent checkouts of the same SKU can both pass the check. The store's
// atomic guarded decrement still prevents negative stock; the loser of the
// race fails at decrement time and is handled as a fulfillment follow-up.
type Ledger struct {
	products repository.ProductRepository
	partner  PartnerCatalog
	logger   *zap.Logger
}

// NewLedger creates a new inventory ledger
func NewLedger(products repository.ProductRepository, partner PartnerCatalog, logger *zap.Logger) *Ledger {
	return &Ledger{
		products: products,
		partner:  partner,
		logger:   logger,
	}
}

// CheckAvailability verifies every cart line against current stock and
// returns the first shortfall found (short-circuit, not an aggregate).
func (l *Ledger) CheckAvailability(ctx context.Context, items []*domain.OrderItem) error {
	for _, item := range items {
		if item.IsPrintify {
			if err := l.checkPartnerLine(ctx, item); err != nil {
				return err
			}
			continue
		}

		product, err := l.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return err
		}

		if item.ChosenAttributes != nil {
			attr := findAttribute(product.Attributes, item.ChosenAttributes.Color, item.ChosenAttributes.Size)
			if attr == nil {
				return &errors.ErrStockShortfall{
					ProductName: product.Name,
					Kind:        errors.ShortfallMissingAttribute,
				}
			}
			if attr.Quantity < item.Quantity {
				return &errors.ErrStockShortfall{
					ProductName: product.Name,
					Kind:        errors.ShortfallInsufficientStock,
					Requested:   item.Quantity,
					Available:   attr.Quantity,
				}
			}
			continue
		}

		if product.Quantity < item.Quantity {
			return &errors.ErrStockShortfall{
				ProductName: product.Name,
				Kind:        errors.ShortfallInsufficientStock,
				Requested:   item.Quantity,
				Available:   product.Quantity,
			}
		}
	}

	return nil
}

// checkPartnerLine validates a print-on-demand line against the partner's
// live variant list. Lines with a custom design have no pre-existing partner
// product to check; production capacity is assumed.
func (l *Ledger) checkPartnerLine(ctx context.Context, item *domain.OrderItem) error {
	if item.PrintifyProductID == nil {
		return nil
	}

	product, err := l.partner.GetProduct(ctx, *item.PrintifyProductID)
	if err != nil {
		l.logger.Warn("Failed to fetch partner product for availability check",
			zap.String("printify_product_id", *item.PrintifyProductID),
			zap.Error(err),
		)
		return &errors.ErrStockShortfall{
			ProductName: item.Name,
			Kind:        errors.ShortfallPartnerUnavailable,
		}
	}

	variant := matchVariant(product.Variants, item)
	if variant == nil || !variant.IsAvailable {
		return &errors.ErrStockShortfall{
			ProductName: item.Name,
			Kind:        errors.ShortfallPartnerUnavailable,
		}
	}

	return nil
}

// matchVariant finds the partner variant for an item's chosen attributes by
// normalized substring match on the combined variant title. Falls back to the
// first variant when no attributes are chosen.
func matchVariant(variants []printify.Variant, item *domain.OrderItem) *printify.Variant {
	if len(variants) == 0 {
		return nil
	}
	if item.ChosenAttributes == nil {
		return &variants[0]
	}

	color := strings.ToLower(strings.TrimSpace(item.ChosenAttributes.Color))
	size := strings.ToLower(strings.TrimSpace(item.ChosenAttributes.Size))
	for i := range variants {
		title := strings.ToLower(variants[i].Title)
		if strings.Contains(title, color) && strings.Contains(title, size) {
			return &variants[i]
		}
	}
	return nil
}

// ApplyDecrement applies per-line stock decrements after payment capture.
// The non-negativity of every line is re-checked in memory before any store
// write; a violation aborts with nothing applied. The store writes themselves
// are per-item atomic but not wrapped in a cross-item transaction, so a store
// failure mid-sequence leaves earlier lines applied (documented behavior; the
// caller decides whether to retry or roll the order back).
func (l *Ledger) ApplyDecrement(ctx context.Context, items []*domain.OrderItem) error {
	// Pre-check before touching the store
	for _, item := range items {
		if item.IsPrintify {
			continue
		}
		product, err := l.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if item.ChosenAttributes != nil {
			attr := findAttribute(product.Attributes, item.ChosenAttributes.Color, item.ChosenAttributes.Size)
			if attr == nil {
				return &errors.ErrStockShortfall{
					ProductName: product.Name,
					Kind:        errors.ShortfallMissingAttribute,
				}
			}
			if attr.Quantity-item.Quantity < 0 {
				return &errors.ErrStockShortfall{
					ProductName: product.Name,
					Kind:        errors.ShortfallInsufficientStock,
					Requested:   item.Quantity,
					Available:   attr.Quantity,
				}
			}
		} else if product.Quantity-item.Quantity < 0 {
			return &errors.ErrStockShortfall{
				ProductName: product.Name,
				Kind:        errors.ShortfallInsufficientStock,
				Requested:   item.Quantity,
				Available:   product.Quantity,
			}
		}
	}

	return l.apply(ctx, items, -1)
}

// ApplyIncrement restores stock on cancellation. Increments are always safe,
// so there is no pre-check.
func (l *Ledger) ApplyIncrement(ctx context.Context, items []*domain.OrderItem) error {
	return l.apply(ctx, items, +1)
}

func (l *Ledger) apply(ctx context.Context, items []*domain.OrderItem, sign int) error {
	for _, item := range items {
		if item.IsPrintify {
			// Partner-fulfilled lines own no local stock
			continue
		}
		delta := sign * item.Quantity
		var err error
		if item.ChosenAttributes != nil {
			err = l.products.AdjustAttributeQuantity(ctx, item.ProductID,
				item.ChosenAttributes.Color, item.ChosenAttributes.Size, delta)
		} else {
			err = l.products.AdjustQuantity(ctx, item.ProductID, delta)
		}
		if err != nil {
			l.logger.Error("Stock adjustment failed",
				zap.String("product_id", item.ProductID.String()),
				zap.Int("delta", delta),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func findAttribute(attrs []domain.AttributeStock, color, size string) *domain.AttributeStock {
	for i := range attrs {
		if strings.EqualFold(attrs[i].Color, color) && strings.EqualFold(attrs[i].Size, size) {
			return &attrs[i]
		}
	}
	return nil
}
