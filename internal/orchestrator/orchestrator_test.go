package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/background"
	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/fulfillment"
	"github.com/printcraft/orderapi/internal/inventory"
	"github.com/printcraft/orderapi/internal/invoice"
	"github.com/printcraft/orderapi/internal/notification"
	"github.com/printcraft/orderapi/internal/payment"
	"github.com/printcraft/orderapi/internal/printify"
	"github.com/printcraft/orderapi/internal/repository"
	"github.com/printcraft/orderapi/pkg/errors"
)

// memOrders is an in-memory order store. Burned invoice numbers survive
// order deletion, mirroring the append-only invoice_numbers table.
type memOrders struct {
	repository.OrderRepository

	mu            sync.Mutex
	orders        map[uuid.UUID]*domain.Order
	burned        map[string]bool
	markPaidCalls int
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[uuid.UUID]*domain.Order{}, burned: map[string]bool{}}
}

func (m *memOrders) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
	m.burned[order.InvoiceNumber] = true
	return nil
}

func (m *memOrders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[id]; ok {
		cp := *order
		return &cp, nil
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
}

func (m *memOrders) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.ProviderOrderID != nil && *order.ProviderOrderID == providerOrderID {
			cp := *order
			return &cp, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: providerOrderID}
}

func (m *memOrders) InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.burned[invoiceNumber], nil
}

func (m *memOrders) MarkPaid(ctx context.Context, id uuid.UUID, paymentDetails map[string]interface{}, providerOrderID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	m.markPaidCalls++
	order.PaymentStatus = domain.PaymentStatusPaid
	order.Status = domain.OrderStatusInProcess
	order.PaymentDetails = paymentDetails
	if providerOrderID != nil {
		order.ProviderOrderID = providerOrderID
	}
	return nil
}

func (m *memOrders) MarkProviderOrder(ctx context.Context, id uuid.UUID, providerOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	ref := providerOrderID
	order.ProviderOrderID = &ref
	return nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	order.Status = status
	return nil
}

func (m *memOrders) AppendPrintifyOrder(ctx context.Context, id uuid.UUID, rec domain.PrintifyOrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[id]; ok {
		order.PrintifyOrders = append(order.PrintifyOrders, rec)
	}
	return nil
}

func (m *memOrders) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	return nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memOrders) paidCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markPaidCalls
}

type memItems struct {
	repository.OrderItemRepository

	mu    sync.Mutex
	items map[uuid.UUID][]*domain.OrderItem
}

func newMemItems() *memItems {
	return &memItems{items: map[uuid.UUID][]*domain.OrderItem{}}
}

func (m *memItems) CreateBatch(ctx context.Context, items []*domain.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.items[item.OrderID] = append(m.items[item.OrderID], item)
	}
	return nil
}

func (m *memItems) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[orderID], nil
}

func (m *memItems) DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, orderID)
	return nil
}

type memProducts struct {
	repository.ProductRepository

	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	adjusts  []int // deltas in call order
}

func (m *memProducts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
}

func (m *memProducts) AdjustQuantity(ctx context.Context, productID uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		p.Quantity += delta
	}
	m.adjusts = append(m.adjusts, delta)
	return nil
}

func (m *memProducts) deltas() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.adjusts...)
}

type memEvents struct {
	repository.OrderEventRepository

	mu     sync.Mutex
	events []*domain.OrderEvent
}

func (m *memEvents) Create(ctx context.Context, event *domain.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memEvents) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType
	}
	return out
}

// scriptedGateway returns pre-set outcomes and counts calls
type scriptedGateway struct {
	provider domain.PaymentProvider
	ref      string

	createOutcome  domain.PaymentOutcome
	createErr      error
	confirmOutcome domain.PaymentOutcome
	captureOutcome domain.PaymentOutcome
	captureErr     error

	mu           sync.Mutex
	createCalls  int
	confirmCalls int
	captureCalls int
}

func (g *scriptedGateway) Provider() domain.PaymentProvider { return g.provider }

func (g *scriptedGateway) CreateIntent(ctx context.Context, order *domain.Order, amountCents int64) (string, domain.PaymentOutcome, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()
	if g.createErr != nil {
		return "", nil, g.createErr
	}
	return g.ref, g.createOutcome, nil
}

func (g *scriptedGateway) Confirm(ctx context.Context, providerOrderID string, method payment.PaymentMethod) (domain.PaymentOutcome, error) {
	g.mu.Lock()
	g.confirmCalls++
	g.mu.Unlock()
	return g.confirmOutcome, nil
}

func (g *scriptedGateway) Capture(ctx context.Context, providerOrderID string) (domain.PaymentOutcome, error) {
	g.mu.Lock()
	g.captureCalls++
	g.mu.Unlock()
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return g.captureOutcome, nil
}

// stubPartner satisfies the dispatcher for carts without print-on-demand lines
type stubPartner struct{}

func (stubPartner) ShopID() string { return "shop-1" }
func (stubPartner) GetProduct(ctx context.Context, productID string) (*printify.Product, error) {
	return nil, fmt.Errorf("not supported")
}
func (stubPartner) CreateProduct(ctx context.Context, req printify.CreateProductRequest) (*printify.Product, error) {
	return nil, fmt.Errorf("not supported")
}
func (stubPartner) SetProductVisible(ctx context.Context, productID string, visible bool) error {
	return nil
}
func (stubPartner) DeleteProduct(ctx context.Context, productID string) error { return nil }
func (stubPartner) UploadImage(ctx context.Context, fileName, url string) (*printify.UploadedImage, error) {
	return nil, fmt.Errorf("not supported")
}
func (stubPartner) CreateOrder(ctx context.Context, req printify.CreateOrderRequest) (*printify.Order, error) {
	return nil, fmt.Errorf("not supported")
}
func (stubPartner) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (stubPartner) ListOrders(ctx context.Context, page int) (*printify.OrderPage, error) {
	return &printify.OrderPage{CurrentPage: page, LastPage: page}, nil
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []notification.EmailMessage
}

func (r *recordingEmail) Send(ctx context.Context, msg notification.EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingEmail) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type noopSMS struct{}

func (noopSMS) Send(ctx context.Context, to, body string) error { return nil }

type harness struct {
	orders    *memOrders
	items     *memItems
	products  *memProducts
	events    *memEvents
	emails    *recordingEmail
	runner    *background.Runner
	orch      *Orchestrator
	productID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop()
	productID := uuid.New()
	products := &memProducts{products: map[uuid.UUID]*domain.Product{
		productID: {ID: productID, Name: "Blue Tee", SKU: "TEE-BLU-M", Price: 25.50, Quantity: 10},
	}}
	orders := newMemOrders()
	items := newMemItems()
	events := &memEvents{}
	emails := &recordingEmail{}

	repos := &repository.Repositories{
		Order:      orders,
		OrderItem:  items,
		Product:    products,
		OrderEvent: events,
	}

	ledger := inventory.NewLedger(products, stubPartner{}, logger)
	allocator := invoice.NewAllocator(orders, logger)
	dispatcher := fulfillment.NewDispatcher(stubPartner{}, orders, events, logger)
	fanout := notification.NewFanout(emails, noopSMS{}, nil, nil,
		config.EmailConfig{FromAddress: "orders@printcraft.example"}, logger)
	runner := background.NewRunner(logger, 5*time.Second)

	return &harness{
		orders:    orders,
		items:     items,
		products:  products,
		events:    events,
		emails:    emails,
		runner:    runner,
		orch:      New(repos, ledger, allocator, dispatcher, fanout, runner, logger),
		productID: productID,
	}
}

func (h *harness) checkoutRequest(qty int) CheckoutRequest {
	return CheckoutRequest{
		Items: []*domain.OrderItem{
			{
				ID:        uuid.New(),
				ProductID: h.productID,
				SKU:       "TEE-BLU-M",
				Name:      "Blue Tee",
				Price:     25.50,
				Quantity:  qty,
			},
		},
		Customer: domain.CustomerSnapshot{
			Name:    "Jordan Reyes",
			Email:   "jordan@example.com",
			Address: "12 Elm St",
			City:    "Austin",
			State:   "TX",
			Zipcode: "78701",
		},
		Shipping:     domain.ShippingSelection{CarrierName: "USPS Ground", Price: 5.00},
		PaymentToken: "tok_visa",
	}
}

func stripeGateway(outcome domain.PaymentOutcome) *scriptedGateway {
	return &scriptedGateway{provider: domain.ProviderStripe, ref: "pi_123", createOutcome: outcome}
}

func TestCheckoutSucceeded(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeSucceeded{ProviderRef: "pi_123", Raw: map[string]interface{}{"status": "succeeded"}})

	result, err := h.orch.Checkout(context.Background(), gw, h.checkoutRequest(2))
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Nil(t, result.Challenge)

	order := result.Order
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusInProcess, order.Status)
	assert.Regexp(t, `^\d{10}$`, order.InvoiceNumber)
	require.NotNil(t, order.ProviderOrderID)
	assert.Equal(t, "pi_123", *order.ProviderOrderID)

	stored, err := h.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)

	h.runner.Wait()
	assert.Equal(t, []int{-2}, h.products.deltas(), "stock decremented after capture")
	assert.Equal(t, 1, h.emails.count())
	assert.Equal(t, []string{"checkout_started", "payment_captured"}, h.events.types())
}

func TestCheckoutDeclined(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeDeclined{Reason: "insufficient_funds"})

	_, err := h.orch.Checkout(context.Background(), gw, h.checkoutRequest(1))

	var declined *errors.ErrGatewayDeclined
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, "CARD_DECLINED", declined.Code)
	assert.Equal(t, "insufficient_funds", declined.Message)

	assert.Equal(t, 0, h.orders.count(), "provisional order must not survive a decline")
	assert.Len(t, h.orders.burned, 1, "invoice number stays burned")

	h.runner.Wait()
	assert.Empty(t, h.products.deltas(), "no stock movement on a failed payment")
}

func TestCheckoutRequiresAction(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeRequiresAction{ClientSecret: "pi_123_secret_abc"})

	result, err := h.orch.Checkout(context.Background(), gw, h.checkoutRequest(1))
	require.NoError(t, err)
	require.NotNil(t, result.Challenge)
	assert.Equal(t, "pi_123_secret_abc", result.Challenge.ClientSecret)
	assert.Equal(t, "pi_123", result.Challenge.ProviderRef)

	// The provisional order survives the challenge, keyed by the intent id,
	// so the capture webhook can find it.
	require.NotNil(t, result.Order)
	assert.Equal(t, domain.PaymentStatusPending, result.Order.PaymentStatus)
	assert.Equal(t, 1, h.orders.count())
	assert.Len(t, h.orders.burned, 1)

	stored, err := h.orders.GetByProviderOrderID(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, result.Order.ID, stored.ID)

	h.runner.Wait()
	assert.Empty(t, h.products.deltas(), "no stock movement before the charge settles")
}

func TestCheckoutRequiresActionThenWebhookFinalizes(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeRequiresAction{ClientSecret: "pi_123_secret_abc"})

	result, err := h.orch.Checkout(context.Background(), gw, h.checkoutRequest(2))
	require.NoError(t, err)
	require.NotNil(t, result.Challenge)

	// Client completes the challenge; the provider confirms asynchronously
	payload := map[string]interface{}{"type": "payment_intent.succeeded"}
	require.NoError(t, h.orch.HandleCaptureWebhook(context.Background(), "pi_123", payload))
	h.runner.Wait()

	stored, err := h.orders.GetByID(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, domain.OrderStatusInProcess, stored.Status)
	assert.Equal(t, []int{-2}, h.products.deltas())
	assert.Equal(t, 1, h.emails.count())
}

func TestCheckoutTransient(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeTransient{Cause: fmt.Errorf("stripe 503")})

	_, err := h.orch.Checkout(context.Background(), gw, h.checkoutRequest(1))

	var transient *errors.ErrGatewayTransient
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 0, h.orders.count())

	h.runner.Wait()
	assert.Empty(t, h.products.deltas())
}

func TestCheckoutStockShortfall(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeSucceeded{ProviderRef: "pi_123"})

	_, err := h.orch.Checkout(context.Background(), gw, h.checkoutRequest(50))

	var shortfall *errors.ErrStockShortfall
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, 50, shortfall.Requested)
	assert.Equal(t, 10, shortfall.Available)

	assert.Equal(t, 0, gw.createCalls, "gateway must not be reached on shortfall")
	assert.Equal(t, 0, h.orders.count())
	assert.Empty(t, h.orders.burned, "no invoice allocated before the stock check passes")
}

func TestCheckoutValidation(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeSucceeded{ProviderRef: "pi_123"})

	req := h.checkoutRequest(1)
	req.Customer.Name = ""
	req.Customer.Email = ""
	req.Customer.Phone = ""
	_, err := h.orch.Checkout(context.Background(), gw, req)

	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "customer.name")
	assert.Contains(t, validation.Fields, "customer")
	assert.Equal(t, 0, gw.createCalls)
}

func TestCheckoutZeroTotalRejected(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeSucceeded{ProviderRef: "pi_123"})

	req := h.checkoutRequest(1)
	req.Items[0].Price = 0
	req.Shipping.Price = 0
	_, err := h.orch.Checkout(context.Background(), gw, req)

	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "total")

	assert.Equal(t, 0, gw.createCalls, "gateway must not see a zero-amount charge")
	assert.Equal(t, 0, h.orders.count())
	assert.Empty(t, h.orders.burned, "no invoice burned for an unchargeable cart")
}

func TestCheckoutDiscountExceedingTotalRejected(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeSucceeded{ProviderRef: "pi_123"})

	req := h.checkoutRequest(1)
	req.Discount = 999.00
	_, err := h.orch.Checkout(context.Background(), gw, req)

	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "discount")
	assert.Equal(t, 0, gw.createCalls)
}

func TestCreateThenCaptureProviderOrder(t *testing.T) {
	h := newHarness(t)
	gw := &scriptedGateway{
		provider:       domain.ProviderPayPal,
		ref:            "PP-ORDER-1",
		createOutcome:  domain.OutcomeRequiresAction{},
		captureOutcome: domain.OutcomeSucceeded{ProviderRef: "CAP-1"},
	}

	order, err := h.orch.CreateProviderOrder(context.Background(), gw, h.checkoutRequest(3))
	require.NoError(t, err)
	require.NotNil(t, order.ProviderOrderID)
	assert.Equal(t, "PP-ORDER-1", *order.ProviderOrderID)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, 1, h.orders.count(), "provisional order persists between phases")

	result, err := h.orch.CaptureProviderOrder(context.Background(), gw, "PP-ORDER-1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, result.Order.PaymentStatus)
	assert.Equal(t, 0, gw.confirmCalls, "no confirm without a payment method")

	h.runner.Wait()
	assert.Equal(t, []int{-3}, h.products.deltas())
}

func TestCaptureAlreadyPaidIsNoOp(t *testing.T) {
	h := newHarness(t)
	gw := &scriptedGateway{provider: domain.ProviderPayPal, captureOutcome: domain.OutcomeSucceeded{}}

	ref := "PP-ORDER-1"
	paid := &domain.Order{
		ID:              uuid.New(),
		InvoiceNumber:   "1234567890",
		Status:          domain.OrderStatusInProcess,
		PaymentStatus:   domain.PaymentStatusPaid,
		ProviderOrderID: &ref,
	}
	require.NoError(t, h.orders.Create(context.Background(), paid))

	result, err := h.orch.CaptureProviderOrder(context.Background(), gw, ref, nil)
	require.NoError(t, err)
	assert.Equal(t, paid.ID, result.Order.ID)
	assert.Equal(t, 0, gw.captureCalls)
	assert.Equal(t, 0, h.orders.paidCalls())
}

func TestCaptureConfirmDeclinedDeletesOrder(t *testing.T) {
	h := newHarness(t)
	gw := &scriptedGateway{
		provider:       domain.ProviderPayPal,
		ref:            "PP-ORDER-1",
		createOutcome:  domain.OutcomeRequiresAction{},
		confirmOutcome: domain.OutcomeDeclined{Reason: "INSTRUMENT_DECLINED"},
	}

	_, err := h.orch.CreateProviderOrder(context.Background(), gw, h.checkoutRequest(1))
	require.NoError(t, err)

	method := &payment.PaymentMethod{Token: "card-token"}
	_, err = h.orch.CaptureProviderOrder(context.Background(), gw, "PP-ORDER-1", method)

	var declined *errors.ErrGatewayDeclined
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, "INSTRUMENT_DECLINED", declined.Message)
	assert.Equal(t, 0, gw.captureCalls, "declined confirm must short-circuit capture")
	assert.Equal(t, 0, h.orders.count())
}

func TestCaptureTransientSurfacesRetryExhaustion(t *testing.T) {
	h := newHarness(t)
	inner := &errors.ErrGatewayTransient{Provider: "paypal", Attempts: 3, Cause: fmt.Errorf("502")}
	gw := &scriptedGateway{
		provider:       domain.ProviderPayPal,
		ref:            "PP-ORDER-1",
		createOutcome:  domain.OutcomeRequiresAction{},
		captureOutcome: domain.OutcomeTransient{Cause: inner},
	}

	_, err := h.orch.CreateProviderOrder(context.Background(), gw, h.checkoutRequest(1))
	require.NoError(t, err)

	_, err = h.orch.CaptureProviderOrder(context.Background(), gw, "PP-ORDER-1", nil)

	var transient *errors.ErrGatewayTransient
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempts, "adapter retry count passes through")
	assert.Equal(t, 0, h.orders.count())
}

func TestWebhookFinalizesOnce(t *testing.T) {
	h := newHarness(t)
	gw := &scriptedGateway{provider: domain.ProviderPayPal, ref: "PP-ORDER-1", createOutcome: domain.OutcomeRequiresAction{}}

	_, err := h.orch.CreateProviderOrder(context.Background(), gw, h.checkoutRequest(2))
	require.NoError(t, err)

	payload := map[string]interface{}{"event_type": "PAYMENT.CAPTURE.COMPLETED"}
	require.NoError(t, h.orch.HandleCaptureWebhook(context.Background(), "PP-ORDER-1", payload))
	h.runner.Wait()

	assert.Equal(t, 1, h.orders.paidCalls())
	assert.Equal(t, []int{-2}, h.products.deltas())
	emailsAfterFirst := h.emails.count()

	// Redelivery of the same webhook is a no-op
	require.NoError(t, h.orch.HandleCaptureWebhook(context.Background(), "PP-ORDER-1", payload))
	h.runner.Wait()

	assert.Equal(t, 1, h.orders.paidCalls())
	assert.Equal(t, []int{-2}, h.products.deltas(), "stock must not be decremented twice")
	assert.Equal(t, emailsAfterFirst, h.emails.count())
}

func TestWebhookUnknownOrder(t *testing.T) {
	h := newHarness(t)

	err := h.orch.HandleCaptureWebhook(context.Background(), "PP-UNKNOWN", nil)

	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestCancelOrderRestoresStockWhenPaid(t *testing.T) {
	h := newHarness(t)
	gw := stripeGateway(domain.OutcomeSucceeded{ProviderRef: "pi_123"})

	result, err := h.orch.Checkout(context.Background(), gw, h.checkoutRequest(2))
	require.NoError(t, err)
	h.runner.Wait()
	require.Equal(t, []int{-2}, h.products.deltas())

	cancelled, err := h.orch.CancelOrder(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, []int{-2, 2}, h.products.deltas(), "increment mirrors the decrement")
	assert.Contains(t, h.events.types(), "order_cancelled")
}

func TestCancelOrderUnpaidSkipsRestock(t *testing.T) {
	h := newHarness(t)

	order := &domain.Order{
		ID:            uuid.New(),
		InvoiceNumber: "1234567890",
		Status:        domain.OrderStatusAwaitingPayment,
		PaymentStatus: domain.PaymentStatusPending,
	}
	require.NoError(t, h.orders.Create(context.Background(), order))

	cancelled, err := h.orch.CancelOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Empty(t, h.products.deltas(), "unpaid orders never consumed stock")
}

func TestCancelOrderIdempotent(t *testing.T) {
	h := newHarness(t)

	order := &domain.Order{
		ID:            uuid.New(),
		InvoiceNumber: "1234567890",
		Status:        domain.OrderStatusCancelled,
		PaymentStatus: domain.PaymentStatusPaid,
	}
	require.NoError(t, h.orders.Create(context.Background(), order))

	cancelled, err := h.orch.CancelOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Empty(t, h.products.deltas())
	assert.Empty(t, h.events.types(), "repeat cancellation records no event")
}

func TestCancelDeliveredRejected(t *testing.T) {
	h := newHarness(t)

	order := &domain.Order{
		ID:            uuid.New(),
		InvoiceNumber: "1234567890",
		Status:        domain.OrderStatusDelivered,
		PaymentStatus: domain.PaymentStatusPaid,
	}
	require.NoError(t, h.orders.Create(context.Background(), order))

	_, err := h.orch.CancelOrder(context.Background(), order.ID)

	var invalid *errors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.OrderStatusDelivered, invalid.From)
}
