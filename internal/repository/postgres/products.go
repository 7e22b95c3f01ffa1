package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/pkg/errors"
)

type productRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB, logger *zap.Logger) *productRepository {
	return &productRepository{
		db:     db,
		logger: logger,
	}
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, name, sku, price, quantity, is_variable, is_printify, store_id
		FROM products
		WHERE id = $1
	`

	var product domain.Product
	var storeID uuid.NullUUID

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.SKU,
		&product.Price,
		&product.Quantity,
		&product.IsVariable,
		&product.IsPrintify,
		&storeID,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get product by ID", zap.Error(err))
		return nil, err
	}
	if storeID.Valid {
		product.StoreID = &storeID.UUID
	}

	if product.IsVariable {
		attrs, err := r.getAttributes(ctx, id)
		if err != nil {
			return nil, err
		}
		product.Attributes = attrs
	}

	return &product, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT id FROM products WHERE sku = $1`

	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, sku).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: sku}
	}
	if err != nil {
		r.logger.Error("Failed to get product by SKU", zap.Error(err))
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *productRepository) getAttributes(ctx context.Context, productID uuid.UUID) ([]domain.AttributeStock, error) {
	query := `
		SELECT id, product_id, color, size, sku, quantity
		FROM product_attributes
		WHERE product_id = $1
		ORDER BY color, size
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		r.logger.Error("Failed to get product attributes", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var attrs []domain.AttributeStock
	for rows.Next() {
		var a domain.AttributeStock
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Color, &a.Size, &a.SKU, &a.Quantity); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

// AdjustQuantity applies delta in a single atomic statement. The WHERE guard
// means a decrement below zero matches no rows, so the store itself can never
// hold a negative quantity regardless of concurrent writers.
func (r *productRepository) AdjustQuantity(ctx context.Context, productID uuid.UUID, delta int) error {
	query := `
		UPDATE products
		SET quantity = quantity + $1
		WHERE id = $2 AND quantity + $1 >= 0
	`

	result, err := r.db.ExecContext(ctx, query, delta, productID)
	if err != nil {
		r.logger.Error("Failed to adjust product quantity", zap.Error(err))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrStockShortfall{
			ProductName: productID.String(),
			Kind:        errors.ShortfallInsufficientStock,
			Requested:   -delta,
		}
	}
	return nil
}

func (r *productRepository) AdjustAttributeQuantity(ctx context.Context, productID uuid.UUID, color, size string, delta int) error {
	query := `
		UPDATE product_attributes
		SET quantity = quantity + $1
		WHERE product_id = $2
			AND LOWER(color) = LOWER($3) AND LOWER(size) = LOWER($4)
			AND quantity + $1 >= 0
	`

	result, err := r.db.ExecContext(ctx, query, delta, productID, color, size)
	if err != nil {
		r.logger.Error("Failed to adjust attribute quantity", zap.Error(err))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrStockShortfall{
			ProductName: productID.String(),
			Kind:        errors.ShortfallInsufficientStock,
			Requested:   -delta,
		}
	}
	return nil
}
