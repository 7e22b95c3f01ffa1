package printify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
)

const (
	requestTimeout = 12 * time.Second
	maxRetries     = 2
)

// Client calls the Printify REST API for one shop
type Client struct {
	baseURL    string
	apiKey     string
	shopID     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Printify client
func NewClient(cfg config.PrintifyConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.printify.com"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		shopID:  cfg.ShopID,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// ShopID returns the configured shop id
func (c *Client) ShopID() string { return c.shopID }

// Variant is one sellable combination of a partner product
type Variant struct {
	ID          int64   `json:"id"`
	SKU         string  `json:"sku"`
	Title       string  `json:"title"`
	Price       int     `json:"price"` // cents
	IsAvailable bool    `json:"is_available"`
	IsEnabled   bool    `json:"is_enabled"`
	Options     []int64 `json:"options,omitempty"`
}

// Product is a partner catalog product (subset used here)
type Product struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	BlueprintID  int       `json:"blueprint_id"`
	PrintProvider int      `json:"print_provider_id"`
	Visible      bool      `json:"visible"`
	Variants     []Variant `json:"variants"`
}

// PlacementImage positions an uploaded image on a print area
type PlacementImage struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
	Angle float64 `json:"angle"`
}

// CreateProductRequest is the payload for one-shot product creation
type CreateProductRequest struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	BlueprintID   int            `json:"blueprint_id"`
	PrintProvider int            `json:"print_provider_id"`
	Variants      []VariantInput `json:"variants"`
	PrintAreas    []PrintArea    `json:"print_areas"`
}

// VariantInput enables a blueprint variant on a new product
type VariantInput struct {
	ID        int64 `json:"id"`
	Price     int   `json:"price"`
	IsEnabled bool  `json:"is_enabled"`
}

// PrintArea groups variant ids with the images placed on them
type PrintArea struct {
	VariantIDs   []int64       `json:"variant_ids"`
	Placeholders []Placeholder `json:"placeholders"`
}

// Placeholder is one print position (front, back) with its images
type Placeholder struct {
	Position string           `json:"position"`
	Images   []PlacementImage `json:"images"`
}

// UploadedImage is the result of an image upload
type UploadedImage struct {
	ID         string `json:"id"`
	FileName   string `json:"file_name"`
	PreviewURL string `json:"preview_url"`
}

// OrderLineItem is one line of a production order
type OrderLineItem struct {
	ProductID string `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// OrderAddress is the production order ship-to address
type OrderAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
	Region    string `json:"region"`
	Address1  string `json:"address1"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
}

// CreateOrderRequest is the payload for placing a production order
type CreateOrderRequest struct {
	ExternalID string          `json:"external_id"`
	Label      string          `json:"label,omitempty"`
	LineItems  []OrderLineItem `json:"line_items"`
	AddressTo  OrderAddress    `json:"address_to"`
}

// Order is a remote production order (subset used by the sync sweep)
type Order struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Shipments  []struct {
		Carrier string `json:"carrier"`
		Number  string `json:"number"`
		URL     string `json:"url"`
	} `json:"shipments"`
}

// OrderPage is one page of the remote order listing
type OrderPage struct {
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	Data        []Order `json:"data"`
}

// do executes one request with bounded retries on connection-reset/timeout.
// 4xx responses are never retried.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if c.apiKey == "" || c.shopID == "" {
		return fmt.Errorf("printify client not configured: API key and shop ID required")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetriableNetErr(err) && attempt < maxRetries {
				c.logger.Warn("Printify request failed, retrying",
					zap.String("path", path),
					zap.Int("attempt", attempt+1),
					zap.Error(err),
				)
				lastErr = err
				continue
			}
			return fmt.Errorf("printify request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("printify API error: status %d, body: %s", resp.StatusCode, string(respBody))
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(respBody))
			}
		}
		return nil
	}

	return fmt.Errorf("printify request failed after %d attempts: %w", maxRetries+1, lastErr)
}

func isRetriableNetErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection reset")
}

// GetProduct fetches one product with its variants
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var out Product
	path := fmt.Sprintf("/v1/shops/%s/products/%s.json", c.shopID, productID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct creates a product (used for ephemeral custom-design products)
func (c *Client) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	var out Product
	path := fmt.Sprintf("/v1/shops/%s/products.json", c.shopID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetProductVisible toggles product visibility. Ephemeral products are
// soft-disabled (visible=false) rather than deleted immediately, so the
// partner's own systems keep resolving them for a while.
func (c *Client) SetProductVisible(ctx context.Context, productID string, visible bool) error {
	path := fmt.Sprintf("/v1/shops/%s/products/%s.json", c.shopID, productID)
	return c.do(ctx, http.MethodPut, path, map[string]interface{}{"visible": visible}, nil)
}

// DeleteProduct hard-deletes a product (reconciliation cleanup only)
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	path := fmt.Sprintf("/v1/shops/%s/products/%s.json", c.shopID, productID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// UploadImage registers a design asset by URL
func (c *Client) UploadImage(ctx context.Context, fileName, url string) (*UploadedImage, error) {
	var out UploadedImage
	body := map[string]string{"file_name": fileName, "url": url}
	if err := c.do(ctx, http.MethodPost, "/v1/uploads/images.json", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder places a production order
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var out Order
	path := fmt.Sprintf("/v1/shops/%s/orders.json", c.shopID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder cancels a remote production order
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/v1/shops/%s/orders/%s/cancel.json", c.shopID, orderID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ListOrders fetches one page of remote orders
func (c *Client) ListOrders(ctx context.Context, page int) (*OrderPage, error) {
	var out OrderPage
	path := fmt.Sprintf("/v1/shops/%s/orders.json?page=%d", c.shopID, page)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
