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

	fmt.Println("📦 Listing products:")

	query := `
		SELECT p.id, p.name, COALESCE(p.sku, ''), p.price, p.quantity,
		       p.is_variable, p.is_printify,
		       (SELECT COUNT(*) FROM product_attributes a WHERE a.product_id = p.id)
		FROM products p
		ORDER BY p.name
		LIMIT 200
	`

	rows, err := db.QueryContext(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query products: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var id, name, sku string
		var price float64
		var quantity, attrCount int
		var isVariable, isPrintify bool

		if err := rows.Scan(&id, &name, &sku, &price, &quantity, &isVariable, &isPrintify, &attrCount); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to scan row: %v\n", err)
			continue
		}

		count++
		fmt.Printf("\n%d. %s\n", count, name)
		fmt.Printf("   ID: %s\n", id)
		if sku != "" {
			fmt.Printf("   SKU: %s\n", sku)
		}
		fmt.Printf("   Price: %.2f\n", price)
		switch {
		case isPrintify:
			fmt.Printf("   Stock: print-on-demand (partner fulfilled)\n")
		case isVariable:
			fmt.Printf("   Stock: %d attribute combination(s)\n", attrCount)
		default:
			fmt.Printf("   Stock: %d\n", quantity)
		}
	}

	if count == 0 {
		fmt.Println("\nNo products found.")
	} else {
		fmt.Printf("\nTotal: %d product(s)\n", count)
	}
}
