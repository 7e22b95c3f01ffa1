package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/fulfillment"
	"github.com/printcraft/orderapi/internal/printify"
	"github.com/printcraft/orderapi/internal/repository/postgres"
)

// One-shot Printify sweep: pull remote order statuses, update tracking, and
// clean up ephemeral products for terminal orders. The server runs the same
// sweep on a timer; this tool exists for ops and cron.
func main() {
	// Load shared .env from repo root (works when run from cmd/printify-sync/ too)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if cfg.Printify.APIKey == "" {
		fmt.Fprintln(os.Stderr, "PRINTIFY_API_KEY is not set")
		os.Exit(1)
	}

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	client := printify.NewClient(cfg.Printify, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("Running Printify sync sweep...")
	fulfillment.RunPrintifySyncOnce(ctx, client, repos, logger)
	fmt.Println("Sweep complete.")
}
