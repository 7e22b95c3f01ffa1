package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/pkg/errors"
)

// respondError maps typed domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept server-side.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch e := err.(type) {
	case *errors.ErrValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Error(), "fields": e.Fields})
	case *errors.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *errors.ErrStockShortfall:
		c.JSON(http.StatusConflict, gin.H{
			"error":     e.Error(),
			"product":   e.ProductName,
			"kind":      e.Kind,
			"requested": e.Requested,
			"available": e.Available,
		})
	case *errors.ErrConflict:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrInvalidStateTransition:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrGatewayDeclined:
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    e.Error(),
			"code":     e.Code,
			"provider": e.Provider,
		})
	case *errors.ErrGatewayTransient:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":    "payment provider temporarily unavailable, please retry",
			"provider": e.Provider,
		})
	default:
		logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// OrderResponse is the public order representation
type OrderResponse struct {
	ID                       string                  `json:"id"`
	InvoiceNumber            string                  `json:"invoice_number"`
	Status                   domain.OrderStatus      `json:"status"`
	PaymentStatus            domain.PaymentStatus    `json:"payment_status"`
	Customer                 domain.CustomerSnapshot `json:"customer"`
	Shipping                 domain.ShippingSelection `json:"shipping"`
	TotalAmount              float64                 `json:"total_amount"`
	TotalAmountAfterDiscount float64                 `json:"total_amount_after_discount"`
	TotalOrderQty            int                     `json:"total_order_qty"`
	CreatedVia               domain.PaymentProvider  `json:"created_via"`
	ProviderOrderID          *string                 `json:"provider_order_id,omitempty"`
	TrackingCarrier          *string                 `json:"tracking_carrier,omitempty"`
	TrackingNumber           *string                 `json:"tracking_number,omitempty"`
	TrackingURL              *string                 `json:"tracking_url,omitempty"`
	Items                    []OrderItemResponse     `json:"items,omitempty"`
	CreatedAt                string                  `json:"created_at"`
	UpdatedAt                string                  `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID        string                   `json:"product_id"`
	SKU              string                   `json:"sku,omitempty"`
	Name             string                   `json:"name"`
	Price            float64                  `json:"price"`
	Quantity         int                      `json:"quantity"`
	IsPrintify       bool                     `json:"is_printify"`
	ChosenAttributes *domain.ChosenAttributes `json:"chosen_attributes,omitempty"`
}

func toOrderResponse(order *domain.Order, items []*domain.OrderItem) OrderResponse {
	resp := OrderResponse{
		ID:                       order.ID.String(),
		InvoiceNumber:            order.InvoiceNumber,
		Status:                   order.Status,
		PaymentStatus:            order.PaymentStatus,
		Customer:                 order.Customer,
		Shipping:                 order.Shipping,
		TotalAmount:              order.TotalAmount,
		TotalAmountAfterDiscount: order.TotalAmountAfterDiscount,
		TotalOrderQty:            order.TotalOrderQty,
		CreatedVia:               order.CreatedVia,
		ProviderOrderID:          order.ProviderOrderID,
		TrackingCarrier:          order.TrackingCarrier,
		TrackingNumber:           order.TrackingNumber,
		TrackingURL:              order.TrackingURL,
		CreatedAt:                order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:                order.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID:        item.ProductID.String(),
			SKU:              item.SKU,
			Name:             item.Name,
			Price:            item.Price,
			Quantity:         item.Quantity,
			IsPrintify:       item.IsPrintify,
			ChosenAttributes: item.ChosenAttributes,
		})
	}
	return resp
}
