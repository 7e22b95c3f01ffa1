package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/pkg/errors"
)

type storeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStoreRepository creates a new store repository
func NewStoreRepository(db *sql.DB, logger *zap.Logger) *storeRepository {
	return &storeRepository{
		db:     db,
		logger: logger,
	}
}

func (r *storeRepository) SellerEmail(ctx context.Context, storeID uuid.UUID) (string, error) {
	query := `SELECT notification_email FROM stores WHERE id = $1`

	var email sql.NullString
	err := r.db.QueryRowContext(ctx, query, storeID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", &errors.ErrNotFound{Resource: "store", ID: storeID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to resolve seller email", zap.Error(err))
		return "", err
	}
	return email.String, nil
}
