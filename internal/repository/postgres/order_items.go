package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
)

type orderItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderItemRepository creates a new order item repository
func NewOrderItemRepository(db *sql.DB, logger *zap.Logger) *orderItemRepository {
	return &orderItemRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderItemRepository) CreateBatch(ctx context.Context, items []*domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (
			id, order_id, product_id, sku, name, price, quantity,
			store_id, is_printify, chosen_attributes, custom_design, printify_product_id, created_at
		)
		VALUES `

	const cols = 13
	args := make([]interface{}, 0, len(items)*cols)
	now := time.Now()

	for i, item := range items {
		if i > 0 {
			query += ", "
		}
		placeholders := make([]interface{}, cols)
		for j := range placeholders {
			placeholders[j] = i*cols + j + 1
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", placeholders...)

		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}

		var attrsJSON, designJSON []byte
		var err error
		if item.ChosenAttributes != nil {
			if attrsJSON, err = json.Marshal(item.ChosenAttributes); err != nil {
				return err
			}
		}
		if item.CustomDesign != nil {
			if designJSON, err = json.Marshal(item.CustomDesign); err != nil {
				return err
			}
		}

		args = append(args,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.SKU,
			item.Name,
			item.Price,
			item.Quantity,
			item.StoreID,
			item.IsPrintify,
			attrsJSON,
			designJSON,
			item.PrintifyProductID,
			item.CreatedAt,
		)
	}

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to create order items batch", zap.Error(err))
		return err
	}

	return nil
}

func (r *orderItemRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, sku, name, price, quantity,
			store_id, is_printify, chosen_attributes, custom_design, printify_product_id, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to get order items by order ID", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []*domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var storeID uuid.NullUUID
		var attrsJSON, designJSON []byte
		var printifyProductID sql.NullString

		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.SKU,
			&item.Name,
			&item.Price,
			&item.Quantity,
			&storeID,
			&item.IsPrintify,
			&attrsJSON,
			&designJSON,
			&printifyProductID,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if storeID.Valid {
			item.StoreID = &storeID.UUID
		}
		if printifyProductID.Valid {
			item.PrintifyProductID = &printifyProductID.String
		}
		if len(attrsJSON) > 0 {
			item.ChosenAttributes = &domain.ChosenAttributes{}
			if err := json.Unmarshal(attrsJSON, item.ChosenAttributes); err != nil {
				return nil, err
			}
		}
		if len(designJSON) > 0 {
			item.CustomDesign = &domain.CustomDesign{}
			if err := json.Unmarshal(designJSON, item.CustomDesign); err != nil {
				return nil, err
			}
		}

		items = append(items, &item)
	}

	return items, rows.Err()
}

func (r *orderItemRepository) DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error {
	query := `DELETE FROM order_items WHERE order_id = $1`

	if _, err := r.db.ExecContext(ctx, query, orderID); err != nil {
		r.logger.Error("Failed to delete order items", zap.Error(err))
		return err
	}
	return nil
}
