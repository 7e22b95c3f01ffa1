package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/orchestrator"
	"github.com/printcraft/orderapi/internal/repository"
	"github.com/printcraft/orderapi/pkg/errors"
)

// resolveOrder fetches an order by UUID or, when the parameter is not a
// UUID, by invoice number.
func resolveOrder(ctx context.Context, repos *repository.Repositories, idParam string) (*domain.Order, error) {
	orderID, err := uuid.Parse(idParam)
	if err == nil {
		return repos.Order.GetByID(ctx, orderID)
	}
	return repos.Order.GetByInvoiceNumber(ctx, idParam)
}

// HandleGetOrder handles GET /v1/orders/:id
func HandleGetOrder(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := resolveOrder(c.Request.Context(), repos, c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		items, err := repos.OrderItem.GetByOrderID(c.Request.Context(), order.ID)
		if err != nil {
			logger.Error("Failed to get order items", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, toOrderResponse(order, items))
	}
}

// HandleCancelOrder handles POST /v1/orders/:id/cancel. Cancellation
// restores stock but never reverses a captured payment.
func HandleCancelOrder(orch *orchestrator.Orchestrator, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := resolveOrder(c.Request.Context(), repos, c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		cancelled, err := orch.CancelOrder(c.Request.Context(), order.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, toOrderResponse(cancelled, nil))
	}
}

// UpdateStatusRequest is the admin status update payload
type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

// HandleUpdateOrderStatus handles PATCH /v1/admin/orders/:id/status
func HandleUpdateOrderStatus(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if !req.Status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown order status"})
			return
		}

		order, err := resolveOrder(c.Request.Context(), repos, c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		if !order.Status.CanTransitionTo(req.Status) {
			respondError(c, logger, &errors.ErrInvalidStateTransition{From: order.Status, To: req.Status})
			return
		}

		if err := repos.Order.UpdateStatus(c.Request.Context(), order.ID, req.Status); err != nil {
			respondError(c, logger, err)
			return
		}
		order.Status = req.Status

		repos.OrderEvent.Create(c.Request.Context(), &domain.OrderEvent{
			OrderID:   order.ID,
			EventType: "status_updated",
			EventData: map[string]interface{}{"status": req.Status},
		})

		c.JSON(http.StatusOK, toOrderResponse(order, nil))
	}
}

// UpdateTrackingRequest is the admin tracking update payload
type UpdateTrackingRequest struct {
	Carrier        *string `json:"carrier,omitempty"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
	TrackingURL    *string `json:"tracking_url,omitempty"`
}

// HandleUpdateTracking handles PATCH /v1/admin/orders/:id/tracking
func HandleUpdateTracking(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateTrackingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		order, err := resolveOrder(c.Request.Context(), repos, c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		if err := repos.Order.UpdateTracking(c.Request.Context(), order.ID, req.Carrier, req.TrackingNumber, req.TrackingURL); err != nil {
			respondError(c, logger, err)
			return
		}

		// Tracking arriving on an in-process order implies it shipped
		if order.Status == domain.OrderStatusInProcess && req.TrackingNumber != nil && *req.TrackingNumber != "" {
			if err := repos.Order.UpdateStatus(c.Request.Context(), order.ID, domain.OrderStatusShipped); err != nil {
				logger.Error("Failed to mark order shipped", zap.Error(err))
			} else {
				order.Status = domain.OrderStatusShipped
			}
		}

		order.TrackingCarrier = req.Carrier
		order.TrackingNumber = req.TrackingNumber
		order.TrackingURL = req.TrackingURL
		c.JSON(http.StatusOK, toOrderResponse(order, nil))
	}
}

// HandleListOrders handles GET /v1/admin/orders. The bucket query parameter
// selects open (default) or closed orders; from/to bound the creation date.
func HandleListOrders(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		open := c.DefaultQuery("bucket", "open") != "closed"

		from := time.Now().AddDate(0, -1, 0)
		to := time.Now().Add(24 * time.Hour)
		if v := c.Query("from"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected YYYY-MM-DD"})
				return
			}
			from = parsed
		}
		if v := c.Query("to"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected YYYY-MM-DD"})
				return
			}
			to = parsed.Add(24 * time.Hour)
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if offset < 0 {
			offset = 0
		}

		orders, err := repos.Order.ListByDateRange(c.Request.Context(), from, to, open, limit, offset)
		if err != nil {
			logger.Error("Failed to list orders", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		responses := make([]OrderResponse, 0, len(orders))
		for _, order := range orders {
			responses = append(responses, toOrderResponse(order, nil))
		}

		c.JSON(http.StatusOK, gin.H{
			"orders": responses,
			"count":  len(responses),
			"limit":  limit,
			"offset": offset,
		})
	}
}
