package fulfillment

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/printify"
	"github.com/printcraft/orderapi/internal/repository"
)

const syncInterval = 10 * time.Minute

var printifySyncMu sync.Mutex

// terminalRemoteStatuses are remote states after which the ephemeral product
// is safe to delete.
var terminalRemoteStatuses = map[string]bool{
	"fulfilled": true,
	"delivered": true,
	"canceled":  true,
	"cancelled": true,
}

// RunPrintifySyncOnce walks the remote partner order listing, maps each
// remote order back to a local order by the stored partner order id, and
// synchronizes status/tracking. Ephemeral products are deleted once the
// local order is cancelled or the remote order reaches a terminal state, so
// one-shot catalog entries don't accumulate without bound.
func RunPrintifySyncOnce(ctx context.Context, partner PartnerAPI, repos *repository.Repositories, logger *zap.Logger) {
	page := 1
	for {
		remotePage, err := partner.ListOrders(ctx, page)
		if err != nil {
			logger.Warn("Printify sync: failed to list remote orders", zap.Int("page", page), zap.Error(err))
			return
		}

		for _, remote := range remotePage.Data {
			syncRemoteOrder(ctx, partner, repos, logger, remote)
		}

		if remotePage.CurrentPage >= remotePage.LastPage || len(remotePage.Data) == 0 {
			return
		}
		page++
	}
}

func syncRemoteOrder(ctx context.Context, partner PartnerAPI, repos *repository.Repositories, logger *zap.Logger, remote printify.Order) {
	// ExternalID is "<invoiceNumber>-<itemID>"
	invoiceNumber := remote.ExternalID
	if idx := strings.Index(invoiceNumber, "-"); idx > 0 {
		invoiceNumber = invoiceNumber[:idx]
	}
	if invoiceNumber == "" {
		return
	}

	order, err := repos.Order.GetByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		logger.Debug("Printify sync: no local order for remote order",
			zap.String("printify_order_id", remote.ID),
			zap.String("invoice_number", invoiceNumber),
		)
		return
	}

	var rec *domain.PrintifyOrderRecord
	for i := range order.PrintifyOrders {
		if order.PrintifyOrders[i].PrintifyOrderID == remote.ID {
			rec = &order.PrintifyOrders[i]
			break
		}
	}
	if rec == nil {
		return
	}

	if rec.Status != remote.Status {
		if err := repos.Order.UpdatePrintifyOrderStatus(ctx, order.ID, remote.ID, remote.Status); err != nil {
			logger.Warn("Printify sync: failed to update remote status", zap.Error(err))
		}
	}

	// Tracking updates are targeted field writes; unrelated concurrent
	// updates (admin status changes) are untouched.
	if len(remote.Shipments) > 0 {
		sh := remote.Shipments[0]
		if sh.Number != "" && (order.TrackingNumber == nil || *order.TrackingNumber != sh.Number) {
			carrier, number, url := sh.Carrier, sh.Number, sh.URL
			if err := repos.Order.UpdateTracking(ctx, order.ID, &carrier, &number, &url); err != nil {
				logger.Warn("Printify sync: failed to update tracking", zap.Error(err))
			}
			if order.Status == domain.OrderStatusInProcess {
				if err := repos.Order.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped); err != nil {
					logger.Warn("Printify sync: failed to mark shipped", zap.Error(err))
				}
			}
		}
	}

	cleanupDue := order.Status == domain.OrderStatusCancelled || terminalRemoteStatuses[strings.ToLower(remote.Status)]
	if cleanupDue && rec.EphemeralProductID != nil {
		if err := partner.DeleteProduct(ctx, *rec.EphemeralProductID); err != nil {
			logger.Warn("Printify sync: failed to delete ephemeral product",
				zap.String("product_id", *rec.EphemeralProductID),
				zap.Error(err),
			)
		} else {
			logger.Info("Printify sync: deleted ephemeral product",
				zap.String("product_id", *rec.EphemeralProductID),
				zap.String("invoice_number", order.InvoiceNumber),
			)
		}
	}
}

// RunPrintifySyncLoop runs sync once, then every syncInterval. Call from a goroutine.
func RunPrintifySyncLoop(ctx context.Context, partner PartnerAPI, repos *repository.Repositories, logger *zap.Logger) {
	printifySyncMu.Lock()
	RunPrintifySyncOnce(ctx, partner, repos, logger)
	printifySyncMu.Unlock()

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printifySyncMu.Lock()
			RunPrintifySyncOnce(ctx, partner, repos, logger)
			printifySyncMu.Unlock()
		}
	}
}
