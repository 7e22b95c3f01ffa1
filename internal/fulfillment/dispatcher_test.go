package fulfillment

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/internal/printify"
	"github.com/printcraft/orderapi/internal/repository"
	"github.com/printcraft/orderapi/pkg/errors"
)

// fakePartner records every call made against the print partner API.
type fakePartner struct {
	calls []string

	product       *printify.Product
	getProductErr error

	createdProduct   *printify.CreateProductRequest
	createProductErr error

	uploadedName string
	uploadedURL  string
	uploadErr    error

	orderReqs []printify.CreateOrderRequest
	orderErr  error

	visibleCalls map[string]bool
	visibleErr   error

	deleted   []string
	deleteErr error

	pages      []*printify.OrderPage
	pagesAsked []int
	listErr    error
}

func (f *fakePartner) ShopID() string { return "shop-1" }

func (f *fakePartner) GetProduct(ctx context.Context, productID string) (*printify.Product, error) {
	f.calls = append(f.calls, "GetProduct")
	if f.getProductErr != nil {
		return nil, f.getProductErr
	}
	return f.product, nil
}

func (f *fakePartner) CreateProduct(ctx context.Context, req printify.CreateProductRequest) (*printify.Product, error) {
	f.calls = append(f.calls, "CreateProduct")
	if f.createProductErr != nil {
		return nil, f.createProductErr
	}
	f.createdProduct = &req
	return &printify.Product{
		ID:       "prod-ephemeral",
		Title:    req.Title,
		Variants: []printify.Variant{{ID: 1, IsEnabled: true}},
	}, nil
}

func (f *fakePartner) SetProductVisible(ctx context.Context, productID string, visible bool) error {
	f.calls = append(f.calls, "SetProductVisible")
	if f.visibleCalls == nil {
		f.visibleCalls = map[string]bool{}
	}
	f.visibleCalls[productID] = visible
	return f.visibleErr
}

func (f *fakePartner) DeleteProduct(ctx context.Context, productID string) error {
	f.calls = append(f.calls, "DeleteProduct")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, productID)
	return nil
}

func (f *fakePartner) UploadImage(ctx context.Context, fileName, url string) (*printify.UploadedImage, error) {
	f.calls = append(f.calls, "UploadImage")
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploadedName = fileName
	f.uploadedURL = url
	return &printify.UploadedImage{ID: "img-1", FileName: fileName}, nil
}

func (f *fakePartner) CreateOrder(ctx context.Context, req printify.CreateOrderRequest) (*printify.Order, error) {
	f.calls = append(f.calls, "CreateOrder")
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orderReqs = append(f.orderReqs, req)
	return &printify.Order{
		ID:         fmt.Sprintf("po-%d", len(f.orderReqs)),
		ExternalID: req.ExternalID,
		Status:     "pending",
	}, nil
}

func (f *fakePartner) CancelOrder(ctx context.Context, orderID string) error {
	f.calls = append(f.calls, "CancelOrder")
	return nil
}

func (f *fakePartner) ListOrders(ctx context.Context, page int) (*printify.OrderPage, error) {
	f.pagesAsked = append(f.pagesAsked, page)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if page-1 < len(f.pages) {
		return f.pages[page-1], nil
	}
	return &printify.OrderPage{CurrentPage: page, LastPage: page}, nil
}

// fakeOrderRepo overrides the order repository methods the dispatcher and
// sync sweep touch; anything else panics via the embedded nil interface.
type fakeOrderRepo struct {
	repository.OrderRepository

	byInvoice map[string]*domain.Order

	appended      []domain.PrintifyOrderRecord
	appendErr     error
	statusUpdates []domain.OrderStatus
	remoteStatus  map[string]string
	tracking      []string
}

func (f *fakeOrderRepo) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*domain.Order, error) {
	if order, ok := f.byInvoice[invoiceNumber]; ok {
		return order, nil
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: invoiceNumber}
}

func (f *fakeOrderRepo) AppendPrintifyOrder(ctx context.Context, id uuid.UUID, rec domain.PrintifyOrderRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, rec)
	return nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeOrderRepo) UpdateTracking(ctx context.Context, id uuid.UUID, carrier, trackingNumber, trackingURL *string) error {
	f.tracking = append(f.tracking, *trackingNumber)
	return nil
}

func (f *fakeOrderRepo) UpdatePrintifyOrderStatus(ctx context.Context, id uuid.UUID, printifyOrderID, status string) error {
	if f.remoteStatus == nil {
		f.remoteStatus = map[string]string{}
	}
	f.remoteStatus[printifyOrderID] = status
	return nil
}

type fakeEventRepo struct {
	repository.OrderEventRepository
	events []*domain.OrderEvent
}

func (f *fakeEventRepo) Create(ctx context.Context, event *domain.OrderEvent) error {
	f.events = append(f.events, event)
	return nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:            uuid.New(),
		InvoiceNumber: "4837291056",
		Status:        domain.OrderStatusInProcess,
		PaymentStatus: domain.PaymentStatusPaid,
		Customer: domain.CustomerSnapshot{
			Name:    "Jordan Reyes",
			Email:   "jordan@example.com",
			Phone:   "+15551234567",
			Address: "12 Elm St",
			City:    "Austin",
			State:   "TX",
			Zipcode: "78701",
		},
	}
}

func catalogItem() *domain.OrderItem {
	productID := "prod-catalog"
	return &domain.OrderItem{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		SKU:               "tee-blu-m",
		Name:              "Blue Tee",
		Price:             25.50,
		Quantity:          2,
		IsPrintify:        true,
		PrintifyProductID: &productID,
	}
}

func customItem() *domain.OrderItem {
	return &domain.OrderItem{
		ID:         uuid.New(),
		ProductID:  uuid.New(),
		Name:       "Custom Mug",
		Price:      19.999,
		Quantity:   1,
		IsPrintify: true,
		CustomDesign: &domain.CustomDesign{
			ImageURL:  "https://cdn.example.com/art.png",
			X:         0.5,
			Y:         0.4,
			Scale:     0.9,
			Angle:     15,
			Blueprint: 68,
		},
	}
}

func newTestDispatcher(partner *fakePartner, orders *fakeOrderRepo, events *fakeEventRepo) *Dispatcher {
	return NewDispatcher(partner, orders, events, zap.NewNop())
}

func TestDispatchCatalogItem(t *testing.T) {
	partner := &fakePartner{
		product: &printify.Product{
			ID: "prod-catalog",
			Variants: []printify.Variant{
				{ID: 10, SKU: "TEE-RED-M"},
				{ID: 11, SKU: "TEE-BLU-M"},
			},
		},
	}
	orders := &fakeOrderRepo{}
	events := &fakeEventRepo{}
	d := newTestDispatcher(partner, orders, events)

	order := testOrder()
	item := catalogItem()
	err := d.DispatchOrder(context.Background(), order, []*domain.OrderItem{item})
	require.NoError(t, err)

	assert.Equal(t, []string{"GetProduct", "CreateOrder"}, partner.calls)

	require.Len(t, partner.orderReqs, 1)
	req := partner.orderReqs[0]
	assert.Equal(t, fmt.Sprintf("%s-%s", order.InvoiceNumber, item.ID), req.ExternalID)
	assert.Equal(t, "Invoice "+order.InvoiceNumber, req.Label)
	require.Len(t, req.LineItems, 1)
	assert.Equal(t, "prod-catalog", req.LineItems[0].ProductID)
	assert.Equal(t, int64(11), req.LineItems[0].VariantID, "SKU match is case-insensitive")
	assert.Equal(t, 2, req.LineItems[0].Quantity)
	assert.Equal(t, "Jordan", req.AddressTo.FirstName)
	assert.Equal(t, "Reyes", req.AddressTo.LastName)
	assert.Equal(t, "US", req.AddressTo.Country)
	assert.Equal(t, "TX", req.AddressTo.Region)

	require.Len(t, orders.appended, 1)
	rec := orders.appended[0]
	assert.Equal(t, "po-1", rec.PrintifyOrderID)
	assert.Equal(t, "shop-1", rec.ShopID)
	assert.Nil(t, rec.EphemeralProductID)
	assert.Equal(t, "pending", rec.Status)

	require.Len(t, events.events, 1)
	assert.Equal(t, "fulfillment_dispatched", events.events[0].EventType)
}

func TestDispatchCustomDesign(t *testing.T) {
	partner := &fakePartner{}
	orders := &fakeOrderRepo{}
	events := &fakeEventRepo{}
	d := newTestDispatcher(partner, orders, events)

	order := testOrder()
	item := customItem()
	err := d.DispatchOrder(context.Background(), order, []*domain.OrderItem{item})
	require.NoError(t, err)

	assert.Equal(t, []string{"UploadImage", "CreateProduct", "CreateOrder", "SetProductVisible"}, partner.calls)

	assert.Equal(t, fmt.Sprintf("custom-%s-%s.png", order.InvoiceNumber, item.ID), partner.uploadedName)
	assert.Equal(t, item.CustomDesign.ImageURL, partner.uploadedURL)

	require.NotNil(t, partner.createdProduct)
	created := *partner.createdProduct
	assert.Equal(t, 68, created.BlueprintID)
	require.Len(t, created.Variants, 1)
	assert.Equal(t, 2000, created.Variants[0].Price)
	assert.True(t, created.Variants[0].IsEnabled)
	require.Len(t, created.PrintAreas, 1)
	require.Len(t, created.PrintAreas[0].Placeholders, 1)
	placeholder := created.PrintAreas[0].Placeholders[0]
	assert.Equal(t, "front", placeholder.Position)
	require.Len(t, placeholder.Images, 1)
	img := placeholder.Images[0]
	assert.Equal(t, "img-1", img.ID)
	assert.Equal(t, 0.5, img.X)
	assert.Equal(t, 0.4, img.Y)
	assert.Equal(t, 0.9, img.Scale)
	assert.Equal(t, float64(15), img.Angle)

	visible, ok := partner.visibleCalls["prod-ephemeral"]
	require.True(t, ok, "ephemeral product must be soft-disabled after ordering")
	assert.False(t, visible)

	require.Len(t, orders.appended, 1)
	rec := orders.appended[0]
	require.NotNil(t, rec.EphemeralProductID)
	assert.Equal(t, "prod-ephemeral", *rec.EphemeralProductID)
}

func TestDispatchToleratesSetVisibleFailure(t *testing.T) {
	partner := &fakePartner{visibleErr: fmt.Errorf("partner 500")}
	orders := &fakeOrderRepo{}
	d := newTestDispatcher(partner, orders, &fakeEventRepo{})

	err := d.DispatchOrder(context.Background(), testOrder(), []*domain.OrderItem{customItem()})
	require.NoError(t, err)
	require.Len(t, orders.appended, 1)
}

func TestDispatchSkipsNonPrintifyItems(t *testing.T) {
	partner := &fakePartner{}
	orders := &fakeOrderRepo{}
	d := newTestDispatcher(partner, orders, &fakeEventRepo{})

	item := &domain.OrderItem{ID: uuid.New(), Name: "Local Hoodie", IsPrintify: false}
	err := d.DispatchOrder(context.Background(), testOrder(), []*domain.OrderItem{item})
	require.NoError(t, err)
	assert.Empty(t, partner.calls)
	assert.Empty(t, orders.appended)
}

func TestDispatchStopsOnFirstFailure(t *testing.T) {
	partner := &fakePartner{getProductErr: fmt.Errorf("partner down")}
	orders := &fakeOrderRepo{}
	d := newTestDispatcher(partner, orders, &fakeEventRepo{})

	order := testOrder()
	first := catalogItem()
	second := catalogItem()
	err := d.DispatchOrder(context.Background(), order, []*domain.OrderItem{first, second})

	var fulfillErr *errors.ErrFulfillment
	require.ErrorAs(t, err, &fulfillErr)
	assert.Equal(t, order.ID.String(), fulfillErr.OrderID)
	assert.Contains(t, fulfillErr.Message, first.Name)

	assert.Equal(t, []string{"GetProduct"}, partner.calls, "second line must not be attempted")
	assert.Empty(t, orders.appended)
}

func TestDispatchCatalogItemWithoutProductID(t *testing.T) {
	d := newTestDispatcher(&fakePartner{}, &fakeOrderRepo{}, &fakeEventRepo{})

	item := catalogItem()
	item.PrintifyProductID = nil
	err := d.DispatchOrder(context.Background(), testOrder(), []*domain.OrderItem{item})

	var fulfillErr *errors.ErrFulfillment
	require.ErrorAs(t, err, &fulfillErr)
}

func TestDispatchSurfacesRecordFailure(t *testing.T) {
	partner := &fakePartner{
		product: &printify.Product{ID: "prod-catalog", Variants: []printify.Variant{{ID: 10}}},
	}
	orders := &fakeOrderRepo{appendErr: fmt.Errorf("db gone")}
	d := newTestDispatcher(partner, orders, &fakeEventRepo{})

	err := d.DispatchOrder(context.Background(), testOrder(), []*domain.OrderItem{catalogItem()})

	var fulfillErr *errors.ErrFulfillment
	require.ErrorAs(t, err, &fulfillErr)
	assert.Contains(t, fulfillErr.Message, "record")
}

func TestResolveVariant(t *testing.T) {
	variants := []printify.Variant{
		{ID: 1, SKU: "MUG-11OZ"},
		{ID: 2, SKU: "MUG-15OZ"},
	}

	v := resolveVariant(variants, "mug-15oz")
	require.NotNil(t, v)
	assert.Equal(t, int64(2), v.ID)

	v = resolveVariant(variants, "no-such-sku")
	require.NotNil(t, v)
	assert.Equal(t, int64(1), v.ID, "falls back to the first variant")

	v = resolveVariant(variants, "")
	require.NotNil(t, v)
	assert.Equal(t, int64(1), v.ID)

	assert.Nil(t, resolveVariant(nil, "MUG-11OZ"))
}
