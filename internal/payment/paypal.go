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

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/domain"
	"github.com/printcraft/orderapi/pkg/errors"
)

const (
	captureAttempts = 3
	captureBackoff  = 600 * time.Millisecond
)

// PayPalGateway charges through the PayPal Orders v2 API. Creation and
// capture are two phases; capture retries bounded times on provider 5xx.
type PayPalGateway struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	tokens       *TokenCache
	logger       *zap.Logger
	sleep        func(time.Duration)
}

// NewPayPalGateway creates a new PayPal adapter. The OAuth client token is
// held in an injected cache so tests can control expiry.
func NewPayPalGateway(cfg config.PayPalConfig, logger *zap.Logger) *PayPalGateway {
	g := &PayPalGateway{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		logger: logger,
		sleep:  time.Sleep,
	}
	g.tokens = NewTokenCache(g.fetchToken)
	return g
}

// WithTokenCache replaces the token cache (tests)
func (g *PayPalGateway) WithTokenCache(cache *TokenCache) *PayPalGateway {
	g.tokens = cache
	return g
}

// WithSleep replaces the backoff sleep (tests)
func (g *PayPalGateway) WithSleep(sleep func(time.Duration)) *PayPalGateway {
	g.sleep = sleep
	return g
}

func (g *PayPalGateway) Provider() domain.PaymentProvider { return domain.ProviderPayPal }

func (g *PayPalGateway) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("paypal token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("paypal token error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, err
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

// CreateIntent creates a PayPal order with intent CAPTURE. Capture happens
// separately after client-side wallet approval.
func (g *PayPalGateway) CreateIntent(ctx context.Context, order *domain.Order, amountCents int64) (string, domain.PaymentOutcome, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"invoice_id": order.InvoiceNumber,
				"amount": map[string]string{
					"currency_code": "USD",
					"value":         fmt.Sprintf("%d.%02d", amountCents/100, amountCents%100),
				},
			},
		},
	}

	status, raw, err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return "", domain.OutcomeTransient{Cause: err}, nil
	}
	if status >= 400 {
		return "", domain.OutcomeDeclined{Reason: issueCode(raw), Raw: raw}, nil
	}

	id, _ := raw["id"].(string)
	return id, domain.OutcomeRequiresAction{Raw: raw}, nil
}

// Confirm attaches a card payment source to the order, validating the card
// schema locally first.
func (g *PayPalGateway) Confirm(ctx context.Context, providerOrderID string, method PaymentMethod) (domain.PaymentOutcome, error) {
	if method.Card != nil {
		if err := ValidateCard(method.Card); err != nil {
			return nil, err
		}
	}

	payload := map[string]interface{}{}
	if method.Card != nil {
		payload["payment_source"] = map[string]interface{}{
			"card": map[string]interface{}{
				"number":        strings.ReplaceAll(method.Card.Number, " ", ""),
				"expiry":        method.Card.Expiry,
				"security_code": method.Card.SecurityCode,
				"name":          method.Card.Name,
				"billing_address": map[string]string{
					"address_line_1": method.Card.BillingAddress.AddressLine1,
					"admin_area_2":   method.Card.BillingAddress.City,
					"admin_area_1":   method.Card.BillingAddress.State,
					"postal_code":    method.Card.BillingAddress.PostalCode,
					"country_code":   method.Card.BillingAddress.CountryCode,
				},
			},
		}
	} else if method.Token != "" {
		payload["payment_source"] = map[string]interface{}{
			"token": map[string]string{"id": method.Token, "type": "BILLING_AGREEMENT"},
		}
	}

	status, raw, err := g.call(ctx, http.MethodPost,
		"/v2/checkout/orders/"+providerOrderID+"/confirm-payment-source", payload)
	if err != nil {
		return domain.OutcomeTransient{Cause: err}, nil
	}
	if status >= 400 {
		return domain.OutcomeDeclined{Reason: issueCode(raw), Raw: raw}, nil
	}
	return domain.OutcomeRequiresAction{Raw: raw}, nil
}

// Capture settles the order. Retries up to captureAttempts times on 5xx or a
// provider INTERNAL_SERVICE_ERROR/INTERNAL_SERVER_ERROR message, with
// linearly increasing backoff (600ms x attempt number). A 4xx aborts
// immediately without retry.
func (g *PayPalGateway) Capture(ctx context.Context, providerOrderID string) (domain.PaymentOutcome, error) {
	var lastErr error

	for attempt := 1; attempt <= captureAttempts; attempt++ {
		status, raw, err := g.call(ctx, http.MethodPost,
			"/v2/checkout/orders/"+providerOrderID+"/capture", map[string]interface{}{})

		switch {
		case err != nil:
			lastErr = err
		case status >= 500 || isInternalServiceError(raw):
			lastErr = fmt.Errorf("paypal capture returned %d: %s", status, issueCode(raw))
		case status >= 400:
			return domain.OutcomeDeclined{Reason: issueCode(raw), Raw: raw}, nil
		default:
			orderStatus, _ := raw["status"].(string)
			if orderStatus == "COMPLETED" {
				return domain.OutcomeSucceeded{ProviderRef: providerOrderID, Raw: raw}, nil
			}
			return domain.OutcomeDeclined{Reason: orderStatus, Raw: raw}, nil
		}

		g.logger.Warn("PayPal capture attempt failed",
			zap.String("provider_order_id", providerOrderID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt < captureAttempts {
			g.sleep(captureBackoff * time.Duration(attempt))
		}
	}

	return domain.OutcomeTransient{Cause: &errors.ErrGatewayTransient{
		Provider: string(domain.ProviderPayPal),
		Attempts: captureAttempts,
		Cause:    lastErr,
	}}, nil
}

func (g *PayPalGateway) call(ctx context.Context, method, path string, payload interface{}) (int, map[string]interface{}, error) {
	token, err := g.tokens.Get(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("paypal auth failed: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("PayPal request failed", zap.String("path", path), zap.Error(err))
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var raw map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &raw); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("failed to unmarshal PayPal response: %w, body: %s", err, string(respBody))
		}
	}

	return resp.StatusCode, raw, nil
}

// isInternalServiceError matches the provider-specific retriable error names
func isInternalServiceError(raw map[string]interface{}) bool {
	name, _ := raw["name"].(string)
	msg, _ := raw["message"].(string)
	for _, v := range []string{name, msg} {
		if v == "INTERNAL_SERVICE_ERROR" || v == "INTERNAL_SERVER_ERROR" {
			return true
		}
	}
	return false
}

// issueCode extracts the most specific error code from a PayPal error body
func issueCode(raw map[string]interface{}) string {
	if raw == nil {
		return "UNKNOWN"
	}
	if details, ok := raw["details"].([]interface{}); ok && len(details) > 0 {
		if d, ok := details[0].(map[string]interface{}); ok {
			if issue, ok := d["issue"].(string); ok && issue != "" {
				return issue
			}
		}
	}
	if name, ok := raw["name"].(string); ok && name != "" {
		return name
	}
	return "UNKNOWN"
}
