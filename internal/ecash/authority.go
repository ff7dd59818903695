package ecash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RedeemResult is the proof set a mint handed back, with its verified value.
type RedeemResult struct {
	Proofs []Proof `json:"proofs"`
	Amount uint64  `json:"amount"`
}

// Authority redeems and consolidates proofs against their issuing mint.
// Implementations own all mint-side cryptography.
type Authority interface {
	// Redeem claims an incoming token, returning fresh proofs owned by the
	// server. The returned amount is the cryptographically verified value.
	Redeem(ctx context.Context, token Token) (RedeemResult, error)

	// Swap exchanges a proof set for an equivalent-value, typically smaller,
	// set from the same mint.
	Swap(ctx context.Context, mint string, proofs []Proof) (RedeemResult, error)
}

const (
	remoteRequestTimeout = 30 * time.Second
	remoteRetryMax       = 2
)

// RemoteAuthority delegates redemption to an operator-run wallet daemon over
// HTTP. The daemon speaks the mint protocol; this server only moves envelopes.
type RemoteAuthority struct {
	base   string
	client *retryablehttp.Client
}

// NewRemoteAuthority creates an authority client for the wallet daemon at
// baseURL.
func NewRemoteAuthority(baseURL string) (*RemoteAuthority, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("wallet url is required")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = remoteRetryMax
	client.HTTPClient.Timeout = remoteRequestTimeout
	client.Logger = nil

	return &RemoteAuthority{base: baseURL, client: client}, nil
}

// Redeem implements Authority.
func (a *RemoteAuthority) Redeem(ctx context.Context, token Token) (RedeemResult, error) {
	encoded, err := EncodeToken(token)
	if err != nil {
		return RedeemResult{}, err
	}
	return a.post(ctx, "/v1/redeem", map[string]any{"token": encoded})
}

// Swap implements Authority.
func (a *RemoteAuthority) Swap(ctx context.Context, mint string, proofs []Proof) (RedeemResult, error) {
	if strings.TrimSpace(mint) == "" {
		return RedeemResult{}, fmt.Errorf("mint is required")
	}
	return a.post(ctx, "/v1/swap", map[string]any{"mint": mint, "proofs": proofs})
}

func (a *RemoteAuthority) post(ctx context.Context, path string, payload any) (RedeemResult, error) {
	var zero RedeemResult

	body, err := json.Marshal(payload)
	if err != nil {
		return zero, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, a.base+path, bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("wallet %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return zero, fmt.Errorf("wallet %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result RedeemResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return zero, fmt.Errorf("wallet %s: decode response: %w", path, err)
	}
	if result.Amount == 0 {
		result.Amount = SumProofs(result.Proofs)
	}
	return result, nil
}
