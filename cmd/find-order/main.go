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
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/find-order/main.go <invoice_number|provider_order_id>")
		fmt.Println("Example: go run cmd/find-order/main.go 4821067359")
		os.Exit(1)
	}

	needle := os.Args[1]

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

	fmt.Printf("🔍 Searching for order: %s\n\n", needle)

	query := `
		SELECT id, invoice_number, status, payment_status, created_via,
		       COALESCE(provider_order_id, ''), total_amount, customer->>'name', created_at
		FROM orders
		WHERE invoice_number = $1 OR provider_order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var id, invoiceNumber, status, paymentStatus, createdVia, providerOrderID string
	var totalAmount float64
	var customerName, createdAt string

	err = db.QueryRowContext(context.Background(), query, needle).Scan(
		&id, &invoiceNumber, &status, &paymentStatus, &createdVia,
		&providerOrderID, &totalAmount, &customerName, &createdAt,
	)

	if err != nil {
		// List recent orders to help debug
		fmt.Printf("❌ Order not found. Listing recent orders to help debug:\n\n")
		listQuery := `
			SELECT invoice_number, status, customer->>'name', created_at
			FROM orders
			ORDER BY created_at DESC
			LIMIT 10
		`
		rows, err := db.QueryContext(context.Background(), listQuery)
		if err == nil {
			defer rows.Close()
			fmt.Printf("Recent orders:\n")
			for rows.Next() {
				var recentInvoice, recentStatus, recentCustomer, recentCreatedAt string
				rows.Scan(&recentInvoice, &recentStatus, &recentCustomer, &recentCreatedAt)
				fmt.Printf("  - Invoice: %s, Status: %s, Customer: %s, Created: %s\n",
					recentInvoice, recentStatus, recentCustomer, recentCreatedAt)
			}
		}
		os.Exit(1)
	}

	fmt.Printf("✅ Found order!\n\n")
	fmt.Printf("Order ID (UUID): %s\n", id)
	fmt.Printf("Invoice Number: %s\n", invoiceNumber)
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Payment Status: %s\n", paymentStatus)
	fmt.Printf("Created Via: %s\n", createdVia)
	if providerOrderID != "" {
		fmt.Printf("Provider Order ID: %s\n", providerOrderID)
	}
	fmt.Printf("Total Amount: %.2f\n", totalAmount)
	fmt.Printf("Customer Name: %s\n", customerName)
	fmt.Printf("Created At: %s\n", createdAt)
	fmt.Printf("\nTo get full order details via API:\n")
	fmt.Printf("curl http://localhost:8080/v1/orders/%s\n", id)
}
