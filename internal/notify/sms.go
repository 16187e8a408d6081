package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// LogSMSSender sólo loguea el mensaje. Útil en dev.
type LogSMSSender struct{}

func (LogSMSSender) Send(ctx context.Context, phone, body string) error {
	logger.From(ctx).Info("sms (log driver)", logger.Phone(phone), logger.String("body", body))
	return nil
}

// WebhookSMSSender hace POST {"to","body"} a un gateway HTTP.
type WebhookSMSSender struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewWebhookSMSSender(url, token string) *WebhookSMSSender {
	return &WebhookSMSSender{URL: url, Token: token, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookSMSSender) Send(ctx context.Context, phone, body string) error {
	payload, err := json.Marshal(map[string]string{"to": phone, "body": body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sms webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sms webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
