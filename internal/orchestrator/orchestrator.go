package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/background"
	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/fulfillment"
	"github.com/printcraft/orderapi/internal/inventory"
	"github.com/printcraft/orderapi/internal/invoice"
	"github.com/printcraft/orderapi/internal/notification"
	"github.com/printcraft/orderapi/internal/payment"
	"github.com/printcraft/orderapi/internal/repository"
	"github.com/printcraft/orderapi/pkg/errors"
)

// CheckoutRequest is a validated-at-entry checkout submission
type CheckoutRequest struct {
	Items    []*domain.OrderItem
	Customer domain.CustomerSnapshot
	Shipping domain.ShippingSelection
	Discount float64 // discounted total; 0 means no discount

	// Payment instrument, provider-dependent
	PaymentToken string
	Card         *payment.Card
}

// Challenge is returned when the provider needs a client-side step before
// the charge can complete (3-D Secure).
type Challenge struct {
	ClientSecret string
	ProviderRef  string
}

// CheckoutResult carries the order plus, when the provider needs a
// client-side authentication step, the challenge to complete. A nil
// Challenge means the order is paid.
type CheckoutResult struct {
	Order     *domain.Order
	Challenge *Challenge
}

// Orchestrator runs the checkout sequence: stock check, invoice allocation,
// payment, persistence, then detached fulfillment and notification. Stock is
// decremented strictly after capture succeeds, so a failed payment never
// consumes stock.
type Orchestrator struct {
	repos      *repository.Repositories
	ledger     *inventory.Ledger
	allocator  *invoice.Allocator
	dispatcher *fulfillment.Dispatcher
	fanout     *notification.Fanout
	runner     *background.Runner
	logger     *zap.Logger
}

// New creates a new order orchestrator
func New(
	repos *repository.Repositories,
	ledger *inventory.Ledger,
	allocator *invoice.Allocator,
	dispatcher *fulfillment.Dispatcher,
	fanout *notification.Fanout,
	runner *background.Runner,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		repos:      repos,
		ledger:     ledger,
		allocator:  allocator,
		dispatcher: dispatcher,
		fanout:     fanout,
		runner:     runner,
		logger:     logger,
	}
}

// Checkout is the single-phase flow (Stripe, Square): validate, check stock,
// allocate invoice, create a provisional order, charge, and either finalize
// or compensate. After the synchronous portion exactly one of {paid order
// persisted, no order} holds.
func (o *Orchestrator) Checkout(ctx context.Context, gw payment.Gateway, req CheckoutRequest) (*CheckoutResult, error) {
	order, items, err := o.prepare(ctx, gw, req)
	if err != nil {
		return nil, err
	}

	providerRef, outcome, err := gw.CreateIntent(ctx, order, payment.MinorUnits(order))
	if err != nil {
		// The provisional order must not outlive a failed payment attempt
		o.deleteProvisional(ctx, order)
		return nil, fmt.Errorf("payment intent creation failed: %w", err)
	}

	switch out := outcome.(type) {
	case domain.OutcomeSucceeded:
		if err := o.finalizePaid(ctx, order, items, out, providerRef); err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: order}, nil

	case domain.OutcomeRequiresAction:
		// Suspend point, not a failure. The provisional order stays, keyed
		// by the provider ref, so the capture webhook can finalize it once
		// the client completes the challenge. An abandoned challenge leaves
		// the AwaitingPayment order behind as a known cleanup gap; the
		// invoice number stays burned either way.
		if err := o.repos.Order.MarkProviderOrder(ctx, order.ID, providerRef); err != nil {
			o.logger.Error("Failed to record provider order id",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
		order.ProviderOrderID = &providerRef
		return &CheckoutResult{
			Order:     order,
			Challenge: &Challenge{ClientSecret: out.ClientSecret, ProviderRef: providerRef},
		}, nil

	case domain.OutcomeDeclined:
		o.deleteProvisional(ctx, order)
		return nil, &errors.ErrGatewayDeclined{
			Provider: string(gw.Provider()),
			Code:     "CARD_DECLINED",
			Message:  out.Reason,
		}

	case domain.OutcomeTransient:
		o.deleteProvisional(ctx, order)
		return nil, &errors.ErrGatewayTransient{
			Provider: string(gw.Provider()),
			Attempts: 1,
			Cause:    out.Cause,
		}

	default:
		o.deleteProvisional(ctx, order)
		return nil, fmt.Errorf("unknown payment outcome %T", outcome)
	}
}

// CreateProviderOrder is phase one of the two-phase flow (PayPal): the
// provisional order and the provider-side order both exist afterwards, with
// capture deferred to client-side approval.
func (o *Orchestrator) CreateProviderOrder(ctx context.Context, gw payment.Gateway, req CheckoutRequest) (*domain.Order, error) {
	order, _, err := o.prepare(ctx, gw, req)
	if err != nil {
		return nil, err
	}

	providerRef, outcome, err := gw.CreateIntent(ctx, order, payment.MinorUnits(order))
	if err != nil {
		o.deleteProvisional(ctx, order)
		return nil, fmt.Errorf("provider order creation failed: %w", err)
	}
	if declined, ok := outcome.(domain.OutcomeDeclined); ok {
		o.deleteProvisional(ctx, order)
		return nil, &errors.ErrGatewayDeclined{
			Provider: string(gw.Provider()),
			Code:     "CARD_DECLINED",
			Message:  declined.Reason,
		}
	}
	if transient, ok := outcome.(domain.OutcomeTransient); ok {
		o.deleteProvisional(ctx, order)
		return nil, &errors.ErrGatewayTransient{Provider: string(gw.Provider()), Attempts: 1, Cause: transient.Cause}
	}

	if err := o.repos.Order.MarkProviderOrder(ctx, order.ID, providerRef); err != nil {
		o.logger.Error("Failed to record provider order id",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	order.ProviderOrderID = &providerRef
	return order, nil
}

// CaptureProviderOrder is phase two: settle the charge for a previously
// created provisional order. On exhausted retries the provisional order is
// deleted and the transient error surfaces as service-unavailable.
func (o *Orchestrator) CaptureProviderOrder(ctx context.Context, gw payment.Gateway, providerOrderID string, method *payment.PaymentMethod) (*CheckoutResult, error) {
	order, err := o.repos.Order.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}

	// Idempotency: a repeat capture of an already-paid order is a no-op
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return &CheckoutResult{Order: order}, nil
	}

	items, err := o.repos.OrderItem.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	if method != nil {
		confirmOutcome, err := gw.Confirm(ctx, providerOrderID, *method)
		if err != nil {
			return nil, err
		}
		if declined, ok := confirmOutcome.(domain.OutcomeDeclined); ok {
			o.deleteProvisional(ctx, order)
			return nil, &errors.ErrGatewayDeclined{
				Provider: string(gw.Provider()),
				Code:     "CARD_DECLINED",
				Message:  declined.Reason,
			}
		}
	}

	outcome, err := gw.Capture(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}

	switch out := outcome.(type) {
	case domain.OutcomeSucceeded:
		if err := o.finalizePaid(ctx, order, items, out, providerOrderID); err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: order}, nil

	case domain.OutcomeDeclined:
		o.deleteProvisional(ctx, order)
		return nil, &errors.ErrGatewayDeclined{
			Provider: string(gw.Provider()),
			Code:     "CARD_DECLINED",
			Message:  out.Reason,
		}

	case domain.OutcomeTransient:
		o.deleteProvisional(ctx, order)
		if gwErr, ok := out.Cause.(*errors.ErrGatewayTransient); ok {
			return nil, gwErr
		}
		return nil, &errors.ErrGatewayTransient{Provider: string(gw.Provider()), Attempts: 1, Cause: out.Cause}

	default:
		return nil, fmt.Errorf("unknown payment outcome %T", outcome)
	}
}

// HandleCaptureWebhook processes an asynchronous provider confirmation. A
// webhook for an order already marked Paid is a no-op, so retried webhook
// deliveries cannot double-dispatch fulfillment or double-decrement stock.
func (o *Orchestrator) HandleCaptureWebhook(ctx context.Context, providerOrderID string, rawPayload map[string]interface{}) error {
	order, err := o.repos.Order.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return err
	}

	if order.PaymentStatus == domain.PaymentStatusPaid {
		o.logger.Info("Webhook for already-paid order, ignoring",
			zap.String("order_id", order.ID.String()),
			zap.String("provider_order_id", providerOrderID),
		)
		return nil
	}

	items, err := o.repos.OrderItem.GetByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}

	return o.finalizePaid(ctx, order, items,
		domain.OutcomeSucceeded{ProviderRef: providerOrderID, Raw: rawPayload}, providerOrderID)
}

// CancelOrder transitions an order to Cancelled and restores its stock.
// Payment capture is not reversed here; refunds are a separate
// administrative action.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := o.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
		return nil, &errors.ErrInvalidStateTransition{From: order.Status, To: domain.OrderStatusCancelled}
	}

	items, err := o.repos.OrderItem.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.repos.Order.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatusCancelled

	// Increment mirrors the decrement exactly, per line item
	if order.PaymentStatus == domain.PaymentStatusPaid {
		if err := o.ledger.ApplyIncrement(ctx, items); err != nil {
			o.logger.Error("Failed to restore stock on cancellation",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
		}
	}

	o.repos.OrderEvent.Create(ctx, &domain.OrderEvent{
		OrderID:   orderID,
		EventType: "order_cancelled",
		EventData: map[string]interface{}{"invoice_number": order.InvoiceNumber},
	})

	return order, nil
}

// prepare runs the pre-payment sequence shared by all flows: validation,
// stock check, invoice allocation, and the provisional order write. No stock
// is touched; decrement waits for capture.
func (o *Orchestrator) prepare(ctx context.Context, gw payment.Gateway, req CheckoutRequest) (*domain.Order, []*domain.OrderItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	if err := o.ledger.CheckAvailability(ctx, req.Items); err != nil {
		return nil, nil, err
	}

	invoiceNumber, err := o.allocator.Allocate(ctx)
	if err != nil {
		return nil, nil, err
	}

	order := &domain.Order{
		ID:                       uuid.New(),
		InvoiceNumber:            invoiceNumber,
		Status:                   domain.OrderStatusAwaitingPayment,
		PaymentStatus:            domain.PaymentStatusPending,
		Customer:                 req.Customer,
		Shipping:                 req.Shipping,
		TotalAmountAfterDiscount: req.Discount,
		CreatedVia:               gw.Provider(),
		PaymentDetails:           map[string]interface{}{},
	}
	if req.PaymentToken != "" {
		switch gw.Provider() {
		case domain.ProviderStripe:
			order.PaymentDetails["payment_method"] = req.PaymentToken
		case domain.ProviderSquare:
			order.PaymentDetails["source_id"] = req.PaymentToken
		}
	}
	order.RecomputeTotals(req.Items)

	for _, item := range req.Items {
		item.OrderID = order.ID
	}

	if err := o.repos.Order.Create(ctx, order); err != nil {
		return nil, nil, err
	}
	if err := o.repos.OrderItem.CreateBatch(ctx, req.Items); err != nil {
		o.deleteProvisional(ctx, order)
		return nil, nil, err
	}

	o.repos.OrderEvent.Create(ctx, &domain.OrderEvent{
		OrderID:   order.ID,
		EventType: "checkout_started",
		EventData: map[string]interface{}{
			"invoice_number": invoiceNumber,
			"provider":       gw.Provider(),
		},
	})

	return order, req.Items, nil
}

// finalizePaid is the durability point. Once the Paid write completes the
// order is real regardless of what happens downstream: stock decrement,
// fulfillment dispatch, and notifications run detached and best-effort,
// isolated from each other.
func (o *Orchestrator) finalizePaid(ctx context.Context, order *domain.Order, items []*domain.OrderItem, out domain.OutcomeSucceeded, providerRef string) error {
	details := out.Raw
	if details == nil {
		details = map[string]interface{}{}
	}
	details["provider_ref"] = out.ProviderRef

	ref := providerRef
	if err := o.repos.Order.MarkPaid(ctx, order.ID, details, &ref); err != nil {
		return fmt.Errorf("failed to persist paid order: %w", err)
	}
	order.PaymentStatus = domain.PaymentStatusPaid
	order.Status = domain.OrderStatusInProcess
	order.PaymentDetails = details
	order.ProviderOrderID = &ref

	o.repos.OrderEvent.Create(ctx, &domain.OrderEvent{
		OrderID:   order.ID,
		EventType: "payment_captured",
		EventData: map[string]interface{}{
			"invoice_number": order.InvoiceNumber,
			"provider":       order.CreatedVia,
			"provider_ref":   out.ProviderRef,
		},
	})

	o.logger.Info("Order paid",
		zap.String("order_id", order.ID.String()),
		zap.String("invoice_number", order.InvoiceNumber),
		zap.String("provider", string(order.CreatedVia)),
	)

	// Copy for the detached tasks; the request-scoped order may be mutated
	// by the handler after return.
	paidOrder := *order

	o.runner.Submit("stock_decrement", func(ctx context.Context) error {
		return o.ledger.ApplyDecrement(ctx, items)
	})
	o.runner.Submit("fulfillment_dispatch", func(ctx context.Context) error {
		return o.dispatcher.DispatchOrder(ctx, &paidOrder, items)
	})
	o.runner.Submit("notification_fanout", func(ctx context.Context) error {
		return o.fanout.SendOrderConfirmation(ctx, &paidOrder, items)
	})

	return nil
}

// deleteProvisional is the compensating action for a failed payment
// attempt: the order row and its items go away, the invoice number stays
// burned forever.
func (o *Orchestrator) deleteProvisional(ctx context.Context, order *domain.Order) {
	if err := o.repos.OrderItem.DeleteByOrderID(ctx, order.ID); err != nil {
		o.logger.Error("Failed to delete provisional order items",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	if err := o.repos.Order.Delete(ctx, order.ID); err != nil {
		o.logger.Error("Failed to delete provisional order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	o.logger.Info("Provisional order deleted",
		zap.String("order_id", order.ID.String()),
		zap.String("invoice_number", order.InvoiceNumber),
	)
}

func validateRequest(req CheckoutRequest) error {
	fields := map[string]string{}

	if len(req.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	total := req.Shipping.Price
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			fields["items"] = fmt.Sprintf("item %q has non-positive quantity", item.Name)
		}
		if item.Price < 0 {
			fields["items"] = fmt.Sprintf("item %q has negative price", item.Name)
		}
		total += item.Price * float64(item.Quantity)
	}
	if len(req.Items) > 0 && total <= 0 {
		fields["total"] = "order total must be positive"
	}
	if req.Discount > total {
		fields["discount"] = "discounted total exceeds the order total"
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		fields["customer.name"] = "name is required"
	}
	if strings.TrimSpace(req.Customer.Email) == "" && strings.TrimSpace(req.Customer.Phone) == "" {
		fields["customer"] = "email or phone is required"
	}
	if strings.TrimSpace(req.Customer.Address) == "" {
		fields["customer.address"] = "address is required"
	}
	if strings.TrimSpace(req.Customer.City) == "" {
		fields["customer.city"] = "city is required"
	}
	if strings.TrimSpace(req.Customer.Zipcode) == "" {
		fields["customer.zipcode"] = "zipcode is required"
	}
	if strings.TrimSpace(req.Shipping.CarrierName) == "" {
		fields["shipping.carrier_name"] = "shipping option is required"
	}
	if req.Shipping.Price < 0 {
		fields["shipping.price"] = "shipping price must not be negative"
	}
	if req.Discount < 0 {
		fields["discount"] = "discount total must not be negative"
	}

	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "invalid checkout request", Fields: fields}
	}
	return nil
}
