package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printcraft/orderapi/internal/config"
)

// HTTPEmailSender sends mail through a SendGrid-compatible HTTP API
type HTTPEmailSender struct {
	apiKey     string
	baseURL    string
	from       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPEmailSender creates an email sender from config
func NewHTTPEmailSender(cfg config.EmailConfig, logger *zap.Logger) *HTTPEmailSender {
	return &HTTPEmailSender{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		from:    cfg.FromAddress,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		logger: logger,
	}
}

func (s *HTTPEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.apiKey == "" {
		return fmt.Errorf("email sender not configured: API key required")
	}

	personalization := map[string]interface{}{
		"to": []map[string]string{{"email": msg.To}},
	}
	if len(msg.Bcc) > 0 {
		bcc := make([]map[string]string, 0, len(msg.Bcc))
		for _, addr := range msg.Bcc {
			if addr == msg.To {
				// SendGrid rejects duplicate recipient across to/bcc
				continue
			}
			bcc = append(bcc, map[string]string{"email": addr})
		}
		if len(bcc) > 0 {
			personalization["bcc"] = bcc
		}
	}

	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{personalization},
		"from":             map[string]string{"email": s.from},
		"subject":          msg.Subject,
		"content": []map[string]string{
			{"type": "text/html", "value": msg.HTMLBody},
		},
	}
	if len(msg.Attachment) > 0 {
		payload["attachments"] = []map[string]string{
			{
				"content":  base64.StdEncoding.EncodeToString(msg.Attachment),
				"type":     "application/pdf",
				"filename": msg.AttachName,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
