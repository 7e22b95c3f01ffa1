package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
)

// HTTPSMSSender sends texts through a Twilio-compatible HTTP API
type HTTPSMSSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSMSSender creates an SMS sender from config
func NewHTTPSMSSender(cfg config.SMSConfig, logger *zap.Logger) *HTTPSMSSender {
	return &HTTPSMSSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		logger: logger,
	}
}

func (s *HTTPSMSSender) Send(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return fmt.Errorf("sms sender not configured: account SID and auth token required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
