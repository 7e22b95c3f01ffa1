package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/orchestrator"
	"github.com/printcraft/orderapi/pkg/errors"
)

// HandlePaymentWebhook handles POST /webhooks/payment/:provider: asynchronous
// capture confirmations. Providers retry deliveries, so an event for an
// already-paid order must come back 200 without side effects; the
// orchestrator guarantees that.
func HandlePaymentWebhook(orch *orchestrator.Orchestrator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := domain.PaymentProvider(c.Param("provider"))
		if !provider.IsValid() {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
			return
		}

		var payload map[string]interface{}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		if !isFinalEvent(provider, payload) {
			// Pre-capture notifications (order approved, payment created)
			// must not mark anything paid; acknowledge and move on
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		providerOrderID := extractProviderOrderID(provider, payload)
		if providerOrderID == "" {
			logger.Warn("Webhook payload without a provider order id",
				zap.String("provider", string(provider)),
			)
			// Not an event we act on; acknowledge so the provider stops retrying
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		if err := orch.HandleCaptureWebhook(c.Request.Context(), providerOrderID, payload); err != nil {
			if _, ok := err.(*errors.ErrNotFound); ok {
				// Possibly a test event or an order created outside this system
				logger.Info("Webhook for unknown order",
					zap.String("provider", string(provider)),
					zap.String("provider_order_id", providerOrderID),
				)
				c.JSON(http.StatusOK, gin.H{"status": "ignored"})
				return
			}
			logger.Error("Failed to process payment webhook",
				zap.String("provider", string(provider)),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// isFinalEvent reports whether the event describes a settled charge. Each
// provider also emits earlier lifecycle events (CHECKOUT.ORDER.APPROVED,
// payment_intent.created) over the same endpoint; only a completed capture
// may finalize an order.
func isFinalEvent(provider domain.PaymentProvider, payload map[string]interface{}) bool {
	switch provider {
	case domain.ProviderStripe:
		eventType, _ := payload["type"].(string)
		return strings.HasSuffix(eventType, ".succeeded")
	case domain.ProviderPayPal:
		eventType, _ := payload["event_type"].(string)
		return strings.Contains(eventType, "CAPTURE") && strings.Contains(eventType, "COMPLETED")
	case domain.ProviderSquare:
		if data, ok := payload["data"].(map[string]interface{}); ok {
			if object, ok := data["object"].(map[string]interface{}); ok {
				if pmt, ok := object["payment"].(map[string]interface{}); ok {
					status, _ := pmt["status"].(string)
					return status == "COMPLETED"
				}
			}
		}
	}
	return false
}

// extractProviderOrderID digs the provider-side order/intent id out of each
// provider's event envelope.
func extractProviderOrderID(provider domain.PaymentProvider, payload map[string]interface{}) string {
	switch provider {
	case domain.ProviderStripe:
		// {"data": {"object": {"id": "pi_..."}}}
		if data, ok := payload["data"].(map[string]interface{}); ok {
			if object, ok := data["object"].(map[string]interface{}); ok {
				if id, ok := object["id"].(string); ok {
					return id
				}
			}
		}
	case domain.ProviderPayPal:
		// {"resource": {"id": "..."}} for CHECKOUT.ORDER.APPROVED;
		// capture events nest the order id under supplementary_data
		if resource, ok := payload["resource"].(map[string]interface{}); ok {
			if supp, ok := resource["supplementary_data"].(map[string]interface{}); ok {
				if related, ok := supp["related_ids"].(map[string]interface{}); ok {
					if id, ok := related["order_id"].(string); ok {
						return id
					}
				}
			}
			if id, ok := resource["id"].(string); ok {
				return id
			}
		}
	case domain.ProviderSquare:
		// {"data": {"object": {"payment": {"id": "..."}}}}
		if data, ok := payload["data"].(map[string]interface{}); ok {
			if object, ok := data["object"].(map[string]interface{}); ok {
				if pmt, ok := object["payment"].(map[string]interface{}); ok {
					if id, ok := pmt["id"].(string); ok {
						return id
					}
				}
			}
		}
	}
	return ""
}
