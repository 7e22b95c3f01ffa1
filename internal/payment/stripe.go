package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
	"github.com/printcraft/orderapi/internal/domain"
)

// StripeGateway charges through Stripe payment intents. Creation and
// confirmation are a single combined call; a requires_action status is a
// suspend point (3-D Secure), not a failure.
type StripeGateway struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewStripeGateway creates a new Stripe adapter
func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger) *StripeGateway {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &StripeGateway{
		secretKey: cfg.SecretKey,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		logger: logger,
	}
}

func (g *StripeGateway) Provider() domain.PaymentProvider { return domain.ProviderStripe }

// CreateIntent creates a payment intent with confirm=true. The payment
// method token rides in the order's PaymentDetails under "payment_method".
func (g *StripeGateway) CreateIntent(ctx context.Context, order *domain.Order, amountCents int64) (string, domain.PaymentOutcome, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", "usd")
	form.Set("confirm", "true")
	form.Set("description", "Invoice "+order.InvoiceNumber)
	form.Set("metadata[invoice_number]", order.InvoiceNumber)
	form.Set("receipt_email", order.Customer.Email)
	if pm, ok := order.PaymentDetails["payment_method"].(string); ok && pm != "" {
		form.Set("payment_method", pm)
	}
	// Redirect-based methods need a return URL we don't have server-side
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")

	raw, err := g.post(ctx, "/v1/payment_intents", form)
	if err != nil {
		return "", domain.OutcomeTransient{Cause: err}, nil
	}

	id, _ := raw["id"].(string)
	return id, g.mapIntent(raw), nil
}

// Confirm re-confirms an intent after a completed 3-D Secure challenge
func (g *StripeGateway) Confirm(ctx context.Context, providerOrderID string, method PaymentMethod) (domain.PaymentOutcome, error) {
	form := url.Values{}
	if method.Token != "" {
		form.Set("payment_method", method.Token)
	}

	raw, err := g.post(ctx, "/v1/payment_intents/"+providerOrderID+"/confirm", form)
	if err != nil {
		return domain.OutcomeTransient{Cause: err}, nil
	}
	return g.mapIntent(raw), nil
}

// Capture re-reads the intent and maps its current status. Stripe intents
// created with confirm=true capture automatically, so this is a status probe
// used by the webhook path.
func (g *StripeGateway) Capture(ctx context.Context, providerOrderID string) (domain.PaymentOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payment_intents/"+providerOrderID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	raw, err := g.send(req)
	if err != nil {
		return domain.OutcomeTransient{Cause: err}, nil
	}
	return g.mapIntent(raw), nil
}

// mapIntent normalizes a payment intent payload into an outcome
func (g *StripeGateway) mapIntent(raw map[string]interface{}) domain.PaymentOutcome {
	status, _ := raw["status"].(string)
	switch status {
	case "succeeded":
		ref, _ := raw["id"].(string)
		return domain.OutcomeSucceeded{ProviderRef: ref, Raw: raw}
	case "requires_action":
		secret, _ := raw["client_secret"].(string)
		return domain.OutcomeRequiresAction{ClientSecret: secret, Raw: raw}
	default:
		// requires_payment_method, canceled, or an error envelope: decline
		reason := status
		if errObj, ok := raw["error"].(map[string]interface{}); ok {
			if code, ok := errObj["decline_code"].(string); ok && code != "" {
				reason = code
			} else if code, ok := errObj["code"].(string); ok {
				reason = code
			}
		}
		return domain.OutcomeDeclined{Reason: reason, Raw: raw}
	}
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.send(req)
}

func (g *StripeGateway) send(req *http.Request) (map[string]interface{}, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("Stripe request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Stripe response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("stripe API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Stripe response: %w, body: %s", err, string(body))
	}

	// 4xx carries a decline/error envelope the caller maps to an outcome
	return raw, nil
}
