package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/api/handlers"
	"github.com/printcraft/orderapi/internal/api/middleware"
	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/orchestrator"
	"github.com/printcraft/orderapi/internal/payment"
	"github.com/printcraft/orderapi/internal/repository"
)

// Gateways bundles the configured payment provider adapters
type Gateways struct {
	Stripe payment.Gateway
	PayPal payment.Gateway
	Square payment.Gateway
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, repos *repository.Repositories, orch *orchestrator.Orchestrator, gateways Gateways, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Order API",
			"endpoints": []string{
				"GET /health",
				"POST /v1/checkout/stripe",
				"POST /v1/checkout/square",
				"POST /v1/checkout/paypal/create",
				"POST /v1/checkout/paypal/capture",
				"POST /v1/checkout/paypal/card",
				"GET /v1/orders/:id",
				"POST /v1/orders/:id/cancel",
				"GET /v1/admin/orders",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks: capture confirmations, delivered out-of-band
	router.POST("/webhooks/payment/:provider", handlers.HandlePaymentWebhook(orch, logger))

	// API v1 routes
	v1 := router.Group("/v1")
	{
		checkout := v1.Group("/checkout")
		checkout.Use(middleware.IdempotencyMiddleware(repos, logger))
		{
			checkout.POST("/stripe", handlers.HandleCheckout(orch, gateways.Stripe, repos, logger))
			checkout.POST("/square", handlers.HandleCheckout(orch, gateways.Square, repos, logger))
			checkout.POST("/paypal/create", handlers.HandlePayPalCreate(orch, gateways.PayPal, repos, logger))
			checkout.POST("/paypal/capture", handlers.HandlePayPalCapture(orch, gateways.PayPal, repos, logger))
			checkout.POST("/paypal/card", handlers.HandlePayPalCardCheckout(orch, gateways.PayPal, repos, logger))
		}

		v1.GET("/orders/:id", handlers.HandleGetOrder(repos, logger))
		v1.POST("/orders/:id/cancel", handlers.HandleCancelOrder(orch, repos, logger))

		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.AdminAuthMiddleware(cfg, logger))
		{
			adminRoutes.GET("/orders", handlers.HandleListOrders(repos, logger))
			adminRoutes.PATCH("/orders/:id/status", handlers.HandleUpdateOrderStatus(repos, logger))
			adminRoutes.PATCH("/orders/:id/tracking", handlers.HandleUpdateTracking(repos, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
