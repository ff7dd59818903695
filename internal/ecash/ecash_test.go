package ecash

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenRoundTripAndFaceValue(t *testing.T) {
	token := Token{
		Mint: "https://mint.example.com",
		Unit: "sat",
		Proofs: []Proof{
			{Amount: 512, ID: "0099", Secret: "s1", C: "c1"},
			{Amount: 465, ID: "0099", Secret: "s2", C: "c2"},
		},
	}

	encoded, err := EncodeToken(token)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeToken(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Mint != token.Mint || len(decoded.Proofs) != 2 {
		t.Fatalf("decoded = %#v", decoded)
	}
	if got := decoded.FaceValue(); got != 977 {
		t.Fatalf("face value = %d, want 977", got)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-token", "satokA%%%", "satokA"} {
		if _, err := DecodeToken(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("DecodeToken(%q) = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestEncodeTokenRequiresMintAndProofs(t *testing.T) {
	if _, err := EncodeToken(Token{Proofs: []Proof{{Amount: 1}}}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing mint: %v", err)
	}
	if _, err := EncodeToken(Token{Mint: "https://m"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing proofs: %v", err)
	}
}

func TestPaymentRequestRoundTrip(t *testing.T) {
	request := PaymentRequest{
		ID:     "payout-1",
		Amount: 977,
		Unit:   "sat",
		Mints:  []string{"https://mint.example.com"},
		Transports: []Transport{
			{Kind: TransportNostr, Target: "nprofile1abc"},
			{Kind: TransportPost, Target: "https://operator.example.com/payout"},
		},
	}

	encoded, err := EncodeRequest(request)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRequest(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Amount != 977 || len(decoded.Transports) != 2 || decoded.Transports[1].Kind != TransportPost {
		t.Fatalf("decoded = %#v", decoded)
	}
}

func TestRemoteAuthorityRedeem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/redeem" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(RedeemResult{
			Proofs: []Proof{{Amount: 600}, {Amount: 377}},
			Amount: 977,
		})
	}))
	defer srv.Close()

	authority, err := NewRemoteAuthority(srv.URL)
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}

	result, err := authority.Redeem(context.Background(), Token{
		Mint:   "https://mint.example.com",
		Proofs: []Proof{{Amount: 977}},
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.Amount != 977 || len(result.Proofs) != 2 {
		t.Fatalf("result = %#v", result)
	}
}

func TestRemoteAuthoritySwapFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mint unreachable", http.StatusBadGateway)
	}))
	defer srv.Close()

	authority, err := NewRemoteAuthority(srv.URL)
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	authority.client.RetryMax = 0

	if _, err := authority.Swap(context.Background(), "https://mint.example.com", []Proof{{Amount: 10}}); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}
