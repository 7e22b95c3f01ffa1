package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/api"
	"github.com/printcraft/orderapi/internal/background"
	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/fulfillment"
	"github.com/printcraft/orderapi/internal/inventory"
	"github.com/printcraft/orderapi/internal/invoice"
	"github.com/printcraft/orderapi/internal/notification"
	"github.com/printcraft/orderapi/internal/orchestrator"
	"github.com/printcraft/orderapi/internal/payment"
	"github.com/printcraft/orderapi/internal/printify"
	"github.com/printcraft/orderapi/internal/repository/postgres"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting order API server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := postgres.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db, logger)

	// Print partner client and domain services
	printifyClient := printify.NewClient(cfg.Printify, logger)
	ledger := inventory.NewLedger(repos.Product, printifyClient, logger)
	allocator := invoice.NewAllocator(repos.Order, logger)
	dispatcher := fulfillment.NewDispatcher(printifyClient, repos.Order, repos.OrderEvent, logger)

	// Notification fan-out
	emailSender := notification.NewHTTPEmailSender(cfg.Email, logger)
	smsSender := notification.NewHTTPSMSSender(cfg.SMS, logger)
	renderer := &notification.BasicInvoiceRenderer{ShopName: "PrintCraft"}
	fanout := notification.NewFanout(emailSender, smsSender, renderer, repos.Store, cfg.Email, logger)

	// Post-payment work runs detached from the request
	runner := background.NewRunner(logger, 2*time.Minute)

	orch := orchestrator.New(repos, ledger, allocator, dispatcher, fanout, runner, logger)

	gateways := api.Gateways{
		Stripe: payment.NewStripeGateway(cfg.Stripe, logger),
		PayPal: payment.NewPayPalGateway(cfg.PayPal, logger),
		Square: payment.NewSquareGateway(cfg.Square, logger),
	}

	// Initialize router
	router := api.NewRouter(cfg, repos, orch, gateways, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Fulfillment sync: run once on startup, then every 10 minutes
	syncCtx := context.Background()
	go fulfillment.RunPrintifySyncLoop(syncCtx, printifyClient, repos, logger)
	logger.Info("Printify sync job started (runs on startup and every 10 minutes)")

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight post-payment work drain
	runner.Wait()

	logger.Info("Server exited")
}
