package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Order:          NewOrderRepository(db, logger),
		OrderItem:      NewOrderItemRepository(db, logger),
		Product:        NewProductRepository(db, logger),
		Store:          NewStoreRepository(db, logger),
		OrderEvent:     NewOrderEventRepository(db, logger),
		IdempotencyKey: NewIdempotencyKeyRepository(db, logger),
	}
}
