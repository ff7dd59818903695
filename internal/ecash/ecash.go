// Package ecash carries the bearer-token value model the upload and payout
// paths share. Serialization of tokens and payment requests lives here; the
// cryptographic side (redeeming and swapping proofs against a mint) is behind
// the Authority interface and performed by an external wallet engine.
package ecash

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	tokenPrefix   = "satokA"
	requestPrefix = "sareqA"

	// DefaultUnit is assumed when a token or request carries no unit.
	DefaultUnit = "sat"
)

// Transport kinds accepted in a payment request.
const (
	TransportNostr = "nostr"
	TransportPost  = "post"
)

var (
	ErrInvalidToken   = errors.New("ecash: invalid token")
	ErrInvalidRequest = errors.New("ecash: invalid payment request")
)

// Proof is one unit of redeemable value issued by a mint. The fields beyond
// Amount are opaque to this server and pass through untouched.
type Proof struct {
	Amount uint64 `json:"amount"`
	ID     string `json:"id"`
	Secret string `json:"secret"`
	C      string `json:"C"`
}

// Token is a bearer bundle of proofs from a single mint.
type Token struct {
	Mint   string  `json:"mint"`
	Unit   string  `json:"unit,omitempty"`
	Memo   string  `json:"memo,omitempty"`
	Proofs []Proof `json:"proofs"`
}

// FaceValue sums the claimed amounts of the token's proofs. This is what the
// sender says the token is worth; only redemption proves it.
func (t Token) FaceValue() uint64 {
	return SumProofs(t.Proofs)
}

// SumProofs adds up proof amounts.
func SumProofs(proofs []Proof) uint64 {
	var total uint64
	for _, p := range proofs {
		total += p.Amount
	}
	return total
}

// PaymentRequest describes how much a payer owes and where value can be
// delivered. Transports are ordered by operator preference.
type PaymentRequest struct {
	ID          string      `json:"id,omitempty"`
	Amount      uint64      `json:"amount,omitempty"`
	Unit        string      `json:"unit,omitempty"`
	Mints       []string    `json:"mints,omitempty"`
	Description string      `json:"description,omitempty"`
	Transports  []Transport `json:"transports,omitempty"`
}

// Transport is one delivery channel in a payment request.
type Transport struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// EncodeToken serializes a token to its header form.
func EncodeToken(t Token) (string, error) {
	if strings.TrimSpace(t.Mint) == "" {
		return "", fmt.Errorf("%w: mint is required", ErrInvalidToken)
	}
	if len(t.Proofs) == 0 {
		return "", fmt.Errorf("%w: no proofs", ErrInvalidToken)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeToken parses a token from its header form.
func DecodeToken(encoded string) (Token, error) {
	var zero Token
	raw, err := decodeEnvelope(encoded, tokenPrefix)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(t.Mint) == "" || len(t.Proofs) == 0 {
		return zero, fmt.Errorf("%w: missing mint or proofs", ErrInvalidToken)
	}
	return t, nil
}

// EncodeRequest serializes a payment request to its header form.
func EncodeRequest(r PaymentRequest) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return requestPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeRequest parses a payment request from its header form.
func DecodeRequest(encoded string) (PaymentRequest, error) {
	var zero PaymentRequest
	raw, err := decodeEnvelope(encoded, requestPrefix)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	var r PaymentRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return r, nil
}

func decodeEnvelope(encoded, prefix string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if !strings.HasPrefix(encoded, prefix) {
		return nil, fmt.Errorf("missing %s prefix", prefix)
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimPrefix(encoded, prefix))
}
