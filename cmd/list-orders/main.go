package main

import (
	"context"
	"fmt"
	"os"

	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	_ = postgres.NewRepositories(db, logger)

	fmt.Println("📋 Listing all orders in database:")

	query := `
		SELECT id, invoice_number, status, payment_status, created_via,
		       total_amount, total_order_qty, customer->>'name',
		       COALESCE(tracking_number, ''), created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT 100
	`

	rows, err := db.QueryContext(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query orders: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var id, invoiceNumber, status, paymentStatus, createdVia string
		var totalAmount float64
		var totalQty int
		var customerName, trackingNumber, createdAt string

		if err := rows.Scan(&id, &invoiceNumber, &status, &paymentStatus, &createdVia,
			&totalAmount, &totalQty, &customerName, &trackingNumber, &createdAt); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to scan row: %v\n", err)
			continue
		}

		count++
		fmt.Printf("\n%d. Invoice: %s\n", count, invoiceNumber)
		fmt.Printf("   ID: %s\n", id)
		fmt.Printf("   Status: %s / %s\n", status, paymentStatus)
		fmt.Printf("   Provider: %s\n", createdVia)
		fmt.Printf("   Customer: %s\n", customerName)
		fmt.Printf("   Total: %.2f (%d items)\n", totalAmount, totalQty)
		if trackingNumber != "" {
			fmt.Printf("   Tracking: %s\n", trackingNumber)
		}
		fmt.Printf("   Created: %s\n", createdAt)
	}

	if count == 0 {
		fmt.Println("\nNo orders found.")
	} else {
		fmt.Printf("\nTotal: %d order(s)\n", count)
	}
}
