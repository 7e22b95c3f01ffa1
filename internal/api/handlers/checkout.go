package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/api/middleware"
	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/orchestrator"
	"github.com/printcraft/orderapi/internal/payment"
	"github.com/printcraft/orderapi/internal/repository"
)

// CheckoutRequest is the wire shape of a checkout submission
type CheckoutRequest struct {
	Items    []CheckoutItem           `json:"items" binding:"required"`
	Customer domain.CustomerSnapshot  `json:"customer" binding:"required"`
	Shipping domain.ShippingSelection `json:"shipping" binding:"required"`
	Discount float64                  `json:"discount,omitempty"`

	// Stripe: a payment method id. Square: a card nonce (source id).
	PaymentToken string `json:"payment_token,omitempty"`

	// PayPal card flow only
	Card *CardInput `json:"card,omitempty"`
}

type CheckoutItem struct {
	ProductID         string                   `json:"product_id" binding:"required"`
	SKU               string                   `json:"sku,omitempty"`
	Name              string                   `json:"name" binding:"required"`
	Price             float64                  `json:"price"`
	Quantity          int                      `json:"quantity" binding:"required"`
	StoreID           *string                  `json:"store_id,omitempty"`
	IsPrintify        bool                     `json:"is_printify,omitempty"`
	ChosenAttributes  *domain.ChosenAttributes `json:"chosen_attributes,omitempty"`
	CustomDesign      *domain.CustomDesign     `json:"custom_design,omitempty"`
	PrintifyProductID *string                  `json:"printify_product_id,omitempty"`
}

type CardInput struct {
	Number         string `json:"number"`
	Expiry         string `json:"expiry"` // YYYY-MM
	SecurityCode   string `json:"security_code"`
	Name           string `json:"name"`
	BillingAddress struct {
		AddressLine1 string `json:"address_line_1"`
		City         string `json:"city"`
		State        string `json:"state"`
		PostalCode   string `json:"postal_code"`
		CountryCode  string `json:"country_code"`
	} `json:"billing_address"`
}

func (r *CheckoutRequest) toOrchestrator() (orchestrator.CheckoutRequest, error) {
	req := orchestrator.CheckoutRequest{
		Customer:     r.Customer,
		Shipping:     r.Shipping,
		Discount:     r.Discount,
		PaymentToken: r.PaymentToken,
	}
	for _, in := range r.Items {
		productID, err := uuid.Parse(in.ProductID)
		if err != nil {
			return req, err
		}
		item := &domain.OrderItem{
			ID:                uuid.New(),
			ProductID:         productID,
			SKU:               in.SKU,
			Name:              in.Name,
			Price:             in.Price,
			Quantity:          in.Quantity,
			IsPrintify:        in.IsPrintify,
			ChosenAttributes:  in.ChosenAttributes,
			CustomDesign:      in.CustomDesign,
			PrintifyProductID: in.PrintifyProductID,
		}
		if in.StoreID != nil {
			storeID, err := uuid.Parse(*in.StoreID)
			if err != nil {
				return req, err
			}
			item.StoreID = &storeID
		}
		req.Items = append(req.Items, item)
	}
	if r.Card != nil {
		req.Card = &payment.Card{
			Number:       r.Card.Number,
			Expiry:       r.Card.Expiry,
			SecurityCode: r.Card.SecurityCode,
			Name:         r.Card.Name,
			BillingAddress: payment.BillingAddress{
				AddressLine1: r.Card.BillingAddress.AddressLine1,
				City:         r.Card.BillingAddress.City,
				State:        r.Card.BillingAddress.State,
				PostalCode:   r.Card.BillingAddress.PostalCode,
				CountryCode:  r.Card.BillingAddress.CountryCode,
			},
		}
	}
	return req, nil
}

// HandleCheckout handles POST /v1/checkout/stripe and /v1/checkout/square:
// the single-call flows where the charge settles (or fails) synchronously.
func HandleCheckout(orch *orchestrator.Orchestrator, gw payment.Gateway, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if replayed := replayIdempotentOrder(c, repos, logger); replayed {
			return
		}

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		orchReq, err := req.toOrchestrator()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product or store id"})
			return
		}

		result, err := orch.Checkout(c.Request.Context(), gw, orchReq)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		if result.Challenge != nil {
			// The provisional order is awaiting client-side authentication;
			// the capture webhook finalizes it once the challenge completes.
			storeIdempotencyKey(c, repos, result.Order.ID, logger)
			c.JSON(http.StatusOK, gin.H{
				"requires_action": true,
				"order_id":        result.Order.ID,
				"invoice_number":  result.Order.InvoiceNumber,
				"client_secret":   result.Challenge.ClientSecret,
				"provider_ref":    result.Challenge.ProviderRef,
			})
			return
		}

		storeIdempotencyKey(c, repos, result.Order.ID, logger)
		c.JSON(http.StatusCreated, toOrderResponse(result.Order, orchReq.Items))
	}
}

// HandlePayPalCreate handles POST /v1/checkout/paypal/create: phase one of
// the redirect flow. The response carries the provider order id the client
// approves before calling capture.
func HandlePayPalCreate(orch *orchestrator.Orchestrator, gw payment.Gateway, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		orchReq, err := req.toOrchestrator()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product or store id"})
			return
		}

		order, err := orch.CreateProviderOrder(c.Request.Context(), gw, orchReq)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"order_id":          order.ID.String(),
			"invoice_number":    order.InvoiceNumber,
			"provider_order_id": order.ProviderOrderID,
		})
	}
}

// CaptureRequest identifies the provider-side order to settle
type CaptureRequest struct {
	ProviderOrderID string `json:"provider_order_id" binding:"required"`
}

// HandlePayPalCapture handles POST /v1/checkout/paypal/capture: phase two,
// after client-side approval.
func HandlePayPalCapture(orch *orchestrator.Orchestrator, gw payment.Gateway, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		result, err := orch.CaptureProviderOrder(c.Request.Context(), gw, req.ProviderOrderID, nil)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		items, err := repos.OrderItem.GetByOrderID(c.Request.Context(), result.Order.ID)
		if err != nil {
			logger.Error("Failed to load order items for response", zap.Error(err))
		}
		c.JSON(http.StatusOK, toOrderResponse(result.Order, items))
	}
}

// HandlePayPalCardCheckout handles POST /v1/checkout/paypal/card: the direct
// card flow, which runs create, confirm and capture server-side in one
// request.
func HandlePayPalCardCheckout(orch *orchestrator.Orchestrator, gw payment.Gateway, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if replayed := replayIdempotentOrder(c, repos, logger); replayed {
			return
		}

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
		if req.Card == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "card is required"})
			return
		}

		orchReq, err := req.toOrchestrator()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product or store id"})
			return
		}

		order, err := orch.CreateProviderOrder(c.Request.Context(), gw, orchReq)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		method := payment.PaymentMethod{Card: orchReq.Card}
		result, err := orch.CaptureProviderOrder(c.Request.Context(), gw, *order.ProviderOrderID, &method)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		storeIdempotencyKey(c, repos, result.Order.ID, logger)
		c.JSON(http.StatusCreated, toOrderResponse(result.Order, orchReq.Items))
	}
}

// replayIdempotentOrder returns the previously created order when the
// request carries an already-seen idempotency key. Reports whether it wrote
// a response.
func replayIdempotentOrder(c *gin.Context, repos *repository.Repositories, logger *zap.Logger) bool {
	_, _, existingOrderID, isExisting := middleware.GetIdempotencyInfo(c)
	if !isExisting {
		return false
	}

	orderID, err := uuid.Parse(existingOrderID)
	if err != nil {
		return false
	}
	order, err := repos.Order.GetByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, logger, err)
		return true
	}
	items, err := repos.OrderItem.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		logger.Error("Failed to load order items for idempotent replay", zap.Error(err))
	}
	c.JSON(http.StatusOK, toOrderResponse(order, items))
	return true
}

func storeIdempotencyKey(c *gin.Context, repos *repository.Repositories, orderID uuid.UUID, logger *zap.Logger) {
	key, requestHash, _, _ := middleware.GetIdempotencyInfo(c)
	if key == "" {
		return
	}
	err := repos.IdempotencyKey.Create(c.Request.Context(), &domain.IdempotencyKey{
		Key:         key,
		OrderID:     orderID,
		RequestHash: requestHash,
	})
	if err != nil {
		logger.Error("Failed to store idempotency key", zap.Error(err))
	}
}
