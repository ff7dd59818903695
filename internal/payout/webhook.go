package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"satstash/internal/ecash"
)

const webhookRetryMax = 1

// Webhook POSTs the payout payload to an operator URL. Any 2xx response
// settles the payout.
type Webhook struct {
	target string
	client *retryablehttp.Client
}

// NewWebhook creates a webhook transport for target.
func NewWebhook(target string) *Webhook {
	client := retryablehttp.NewClient()
	client.RetryMax = webhookRetryMax
	client.Logger = nil
	return &Webhook{target: target, client: client}
}

// Kind implements Transport.
func (w *Webhook) Kind() string { return ecash.TransportPost }

// Send implements Transport.
func (w *Webhook) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", w.target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook %s: status %d: %s", w.target, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
