package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/pkg/errors"
)

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `
	id, invoice_number, status, payment_status, customer, shipping,
	total_amount, total_amount_after_discount, total_order_qty,
	created_via, provider_order_id, payment_details, printify_orders,
	tracking_carrier, tracking_number, tracking_url, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	customerJSON, err := json.Marshal(order.Customer)
	if err != nil {
		return err
	}
	shippingJSON, err := json.Marshal(order.Shipping)
	if err != nil {
		return err
	}
	var paymentDetailsJSON []byte
	if order.PaymentDetails != nil {
		if paymentDetailsJSON, err = json.Marshal(order.PaymentDetails); err != nil {
			return err
		}
	}
	printifyJSON, err := json.Marshal(order.PrintifyOrders)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Burn the invoice number first; it stays allocated even if the order
	// row is later deleted as payment compensation.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO invoice_numbers (invoice_number, allocated_at) VALUES ($1, $2)
		 ON CONFLICT (invoice_number) DO NOTHING`,
		order.InvoiceNumber, now,
	); err != nil {
		r.logger.Error("Failed to record invoice number", zap.Error(err))
		return err
	}

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.InvoiceNumber,
		order.Status,
		order.PaymentStatus,
		customerJSON,
		shippingJSON,
		order.TotalAmount,
		order.TotalAmountAfterDiscount,
		order.TotalOrderQty,
		order.CreatedVia,
		order.ProviderOrderID,
		paymentDetailsJSON,
		printifyJSON,
		order.TrackingCarrier,
		order.TrackingNumber,
		order.TrackingURL,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return &errors.ErrConflict{Message: "order with this invoice number already exists"}
		}
		r.logger.Error("Failed to create order", zap.Error(err))
		return err
	}

	return tx.Commit()
}

func (r *orderRepository) scanOrder(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Order, error) {
	var order domain.Order
	var customerJSON, shippingJSON, printifyJSON []byte
	var paymentDetailsJSON sql.NullString
	var providerOrderID sql.NullString
	var trackingCarrier sql.NullString
	var trackingNumber sql.NullString
	var trackingURL sql.NullString

	err := row.Scan(
		&order.ID,
		&order.InvoiceNumber,
		&order.Status,
		&order.PaymentStatus,
		&customerJSON,
		&shippingJSON,
		&order.TotalAmount,
		&order.TotalAmountAfterDiscount,
		&order.TotalOrderQty,
		&order.CreatedVia,
		&providerOrderID,
		&paymentDetailsJSON,
		&printifyJSON,
		&trackingCarrier,
		&trackingNumber,
		&trackingURL,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if providerOrderID.Valid {
		order.ProviderOrderID = &providerOrderID.String
	}
	if trackingCarrier.Valid {
		order.TrackingCarrier = &trackingCarrier.String
	}
	if trackingNumber.Valid {
		order.TrackingNumber = &trackingNumber.String
	}
	if trackingURL.Valid {
		order.TrackingURL = &trackingURL.String
	}

	if err := json.Unmarshal(customerJSON, &order.Customer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shippingJSON, &order.Shipping); err != nil {
		return nil, err
	}
	if paymentDetailsJSON.Valid && paymentDetailsJSON.String != "" {
		if err := json.Unmarshal([]byte(paymentDetailsJSON.String), &order.PaymentDetails); err != nil {
			return nil, err
		}
	}
	if len(printifyJSON) > 0 {
		if err := json.Unmarshal(printifyJSON, &order.PrintifyOrders); err != nil {
			return nil, err
		}
	}

	return &order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE invoice_number = $1`

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, invoiceNumber))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: invoiceNumber}
	}
	if err != nil {
		r.logger.Error("Failed to get order by invoice number", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE provider_order_id = $1`

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, providerOrderID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: providerOrderID}
	}
	if err != nil {
		r.logger.Error("Failed to get order by provider order ID", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	// invoice_numbers is append-only, so deleted orders still count
	query := `SELECT EXISTS (SELECT 1 FROM invoice_numbers WHERE invoice_number = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, invoiceNumber).Scan(&exists); err != nil {
		r.logger.Error("Failed to check invoice number", zap.Error(err))
		return false, err
	}
	return exists, nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentDetails map[string]interface{}, providerOrderID *string) error {
	paymentDetailsJSON, err := json.Marshal(paymentDetails)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET payment_status = $1, status = $2, payment_details = $3,
			provider_order_id = COALESCE($4, provider_order_id), updated_at = $5
		WHERE id = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		domain.PaymentStatusPaid,
		domain.OrderStatusInProcess,
		paymentDetailsJSON,
		providerOrderID,
		time.Now(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to mark order paid", zap.Error(err))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func (r *orderRepository) MarkProviderOrder(ctx context.Context, id uuid.UUID, providerOrderID string) error {
	query := `UPDATE orders SET provider_order_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, providerOrderID, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to record provider order ID", zap.Error(err))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.Error(err))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func (r *orderRepository) UpdateTracking(ctx context.Context, id uuid.UUID, carrier, trackingNumber, trackingURL *string) error {
	query := `
		UPDATE orders
		SET tracking_carrier = COALESCE($1, tracking_carrier),
			tracking_number = COALESCE($2, tracking_number),
			tracking_url = COALESCE($3, tracking_url),
			updated_at = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(ctx, query, carrier, trackingNumber, trackingURL, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update order tracking", zap.Error(err))
		return err
	}
	return nil
}

func (r *orderRepository) AppendPrintifyOrder(ctx context.Context, id uuid.UUID, rec domain.PrintifyOrderRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	// Targeted JSONB append so concurrent updates to other fields are untouched
	query := `
		UPDATE orders
		SET printify_orders = COALESCE(printify_orders, '[]'::jsonb) || $1::jsonb,
			updated_at = $2
		WHERE id = $3
	`

	_, err = r.db.ExecContext(ctx, query, recJSON, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to append printify order record", zap.Error(err))
		return err
	}
	return nil
}

func (r *orderRepository) UpdatePrintifyOrderStatus(ctx context.Context, id uuid.UUID, printifyOrderID, status string) error {
	// Rewrites only the matching array element's status field
	query := `
		UPDATE orders
		SET printify_orders = (
			SELECT jsonb_agg(
				CASE WHEN elem->>'printify_order_id' = $1
					THEN jsonb_set(elem, '{status}', to_jsonb($2::text))
					ELSE elem
				END
			)
			FROM jsonb_array_elements(printify_orders) AS elem
		),
		updated_at = $3
		WHERE id = $4 AND printify_orders IS NOT NULL
	`

	_, err := r.db.ExecContext(ctx, query, printifyOrderID, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update printify order status", zap.Error(err))
		return err
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM orders WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete order", zap.Error(err))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func (r *orderRepository) ListByDateRange(ctx context.Context, from, to time.Time, open bool, limit, offset int) ([]*domain.Order, error) {
	op := "NOT IN"
	if !open {
		op = "IN"
	}
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
			AND status ` + op + ` ($3, $4, $5)
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7`

	closed := domain.ClosedStatuses()
	rows, err := r.db.QueryContext(ctx, query, from, to, closed[0], closed[1], closed[2], limit, offset)
	if err != nil {
		r.logger.Error("Failed to list orders by date range", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

func (r *orderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list orders by status", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

func (r *orderRepository) collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
