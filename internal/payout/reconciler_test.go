package payout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"satstash/internal/ecash"
	"satstash/internal/models"
)

type fakeLedger struct {
	tokens map[string][]models.PendingToken

	deleted  [][]int64
	replaced []*models.PendingToken

	onMintBalances func()
}

func (f *fakeLedger) MintBalances(_ context.Context, threshold uint64) ([]models.MintBalance, error) {
	if f.onMintBalances != nil {
		f.onMintBalances()
	}
	balances := []models.MintBalance{}
	for mint, rows := range f.tokens {
		var total uint64
		for _, row := range rows {
			total += row.Amount
		}
		if total >= threshold {
			balances = append(balances, models.MintBalance{Mint: mint, Amount: total})
		}
	}
	return balances, nil
}

func (f *fakeLedger) TokensByMint(_ context.Context, mint string) ([]models.PendingToken, error) {
	return f.tokens[mint], nil
}

func (f *fakeLedger) DeleteTokens(_ context.Context, ids []int64) error {
	f.deleted = append(f.deleted, ids)
	return nil
}

func (f *fakeLedger) ReplaceTokens(_ context.Context, ids []int64, replacement *models.PendingToken) error {
	f.deleted = append(f.deleted, ids)
	f.replaced = append(f.replaced, replacement)
	return nil
}

type fakeAuthority struct {
	swapCalls int
	fail      bool
}

func (f *fakeAuthority) Redeem(_ context.Context, token ecash.Token) (ecash.RedeemResult, error) {
	return ecash.RedeemResult{Proofs: token.Proofs, Amount: token.FaceValue()}, nil
}

func (f *fakeAuthority) Swap(_ context.Context, _ string, proofs []ecash.Proof) (ecash.RedeemResult, error) {
	f.swapCalls++
	if f.fail {
		return ecash.RedeemResult{}, errors.New("mint unreachable")
	}
	// One optimized proof for the whole amount.
	total := ecash.SumProofs(proofs)
	return ecash.RedeemResult{Proofs: []ecash.Proof{{Amount: total, ID: "opt"}}, Amount: total}, nil
}

type fakeTransport struct {
	kind  string
	fail  bool
	sent  []Payload
	calls int
}

func (f *fakeTransport) Kind() string { return f.kind }

func (f *fakeTransport) Send(_ context.Context, payload Payload) error {
	f.calls++
	if f.fail {
		return errors.New("unreachable")
	}
	f.sent = append(f.sent, payload)
	return nil
}

func pendingToken(t *testing.T, id int64, mint string, amount uint64) models.PendingToken {
	t.Helper()
	encoded, err := ecash.EncodeToken(ecash.Token{
		Mint:   mint,
		Proofs: []ecash.Proof{{Amount: amount, ID: "00", Secret: "s", C: "c"}},
	})
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	return models.PendingToken{ID: id, Token: encoded, Mint: mint, Amount: amount}
}

func TestReconcileDeliversAfterFallback(t *testing.T) {
	// Two tokens for M1 (600 + 500, threshold 1000): consolidation swaps,
	// webhook fails, nostr succeeds, all rows deleted, nothing replaced.
	ledger := &fakeLedger{tokens: map[string][]models.PendingToken{
		"https://m1": {pendingToken(t, 1, "https://m1", 600), pendingToken(t, 2, "https://m1", 500)},
	}}
	authority := &fakeAuthority{}
	failing := &fakeTransport{kind: "post", fail: true}
	working := &fakeTransport{kind: "nostr"}

	r := New(ledger, authority, []Transport{failing, working}, "req-1", "sat", 1000, nil)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if authority.swapCalls != 1 {
		t.Fatalf("swap calls = %d", authority.swapCalls)
	}
	if failing.calls != 1 || len(working.sent) != 1 {
		t.Fatalf("fallback broken: failing=%d working=%d", failing.calls, len(working.sent))
	}
	if working.sent[0].Amount() != 1100 || working.sent[0].ID != "req-1" {
		t.Fatalf("payload = %#v", working.sent[0])
	}
	if len(ledger.deleted) != 1 || len(ledger.deleted[0]) != 2 {
		t.Fatalf("deleted = %#v", ledger.deleted)
	}
	if len(ledger.replaced) != 0 {
		t.Fatalf("unexpected replacement: %#v", ledger.replaced)
	}
}

func TestReconcilePreservesSwappedValueWhenDeliveryFails(t *testing.T) {
	ledger := &fakeLedger{tokens: map[string][]models.PendingToken{
		"https://m1": {pendingToken(t, 1, "https://m1", 600), pendingToken(t, 2, "https://m1", 500)},
	}}
	authority := &fakeAuthority{}
	failing := &fakeTransport{kind: "post", fail: true}

	r := New(ledger, authority, []Transport{failing}, "", "sat", 1000, nil)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(ledger.replaced) != 1 {
		t.Fatalf("replaced = %#v", ledger.replaced)
	}
	replacement := ledger.replaced[0]
	if replacement.Amount != 1100 || replacement.Mint != "https://m1" {
		t.Fatalf("replacement = %#v", replacement)
	}
	decoded, err := ecash.DecodeToken(replacement.Token)
	if err != nil {
		t.Fatalf("replacement token invalid: %v", err)
	}
	if decoded.FaceValue() != 1100 {
		t.Fatalf("replacement face value = %d", decoded.FaceValue())
	}
}

func TestReconcileSingleTokenGroupLeftUntouchedOnFailure(t *testing.T) {
	ledger := &fakeLedger{tokens: map[string][]models.PendingToken{
		"https://m1": {pendingToken(t, 1, "https://m1", 1500)},
	}}
	authority := &fakeAuthority{}
	failing := &fakeTransport{kind: "post", fail: true}

	r := New(ledger, authority, []Transport{failing}, "", "sat", 1000, nil)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if authority.swapCalls != 0 {
		t.Fatal("single-token group must not be swapped")
	}
	if len(ledger.deleted) != 0 || len(ledger.replaced) != 0 {
		t.Fatalf("rows mutated: deleted=%v replaced=%v", ledger.deleted, ledger.replaced)
	}
}

func TestReconcileSwapFailureLeavesRowsAndContinues(t *testing.T) {
	ledger := &fakeLedger{tokens: map[string][]models.PendingToken{
		"https://m1": {pendingToken(t, 1, "https://m1", 600), pendingToken(t, 2, "https://m1", 500)},
		"https://m2": {pendingToken(t, 3, "https://m2", 1200)},
	}}
	authority := &fakeAuthority{fail: true}
	working := &fakeTransport{kind: "post"}

	r := New(ledger, authority, []Transport{working}, "", "sat", 1000, nil)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// m1's swap failed: rows untouched. m2 is a single token, no swap
	// needed, so it still settles.
	if len(ledger.replaced) != 0 {
		t.Fatalf("replaced = %#v", ledger.replaced)
	}
	if len(working.sent) != 1 || working.sent[0].Mint != "https://m2" {
		t.Fatalf("sent = %#v", working.sent)
	}
	if len(ledger.deleted) != 1 || ledger.deleted[0][0] != 3 {
		t.Fatalf("deleted = %#v", ledger.deleted)
	}
}

func TestReconcileBelowThresholdSkipped(t *testing.T) {
	ledger := &fakeLedger{tokens: map[string][]models.PendingToken{
		"https://m1": {pendingToken(t, 1, "https://m1", 400)},
	}}
	working := &fakeTransport{kind: "post"}

	r := New(ledger, &fakeAuthority{}, []Transport{working}, "", "sat", 1000, nil)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if working.calls != 0 {
		t.Fatal("below-threshold mint was paid out")
	}
}

func TestReconcileRefusesOverlappingCycle(t *testing.T) {
	// An admin-triggered cycle must not interleave with the scheduled one:
	// two concurrent cycles would read the same pending rows and each deliver
	// and delete them. The overlapping call returns without doing anything.
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	ledger := &fakeLedger{tokens: map[string][]models.PendingToken{
		"https://m1": {pendingToken(t, 1, "https://m1", 1200)},
	}}
	ledger.onMintBalances = func() {
		once.Do(func() { close(entered) })
		<-release
	}
	working := &fakeTransport{kind: "post"}
	r := New(ledger, &fakeAuthority{}, []Transport{working}, "req-1", "sat", 1000, nil)

	done := make(chan error, 1)
	go func() { done <- r.Reconcile(context.Background()) }()
	<-entered

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("overlapping reconcile: %v", err)
	}
	if working.calls != 0 {
		t.Fatalf("overlapping cycle delivered %d payloads", working.calls)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if working.calls != 1 {
		t.Fatalf("payout delivered %d times for one pending group, want 1", working.calls)
	}
	if len(ledger.deleted) != 1 {
		t.Fatalf("deletes = %v, want one batch", ledger.deleted)
	}
}

func TestBuildTransportsSkipsUnknownKinds(t *testing.T) {
	specs := []ecash.Transport{
		{Kind: "carrier-pigeon", Target: "coop"},
		{Kind: ecash.TransportPost, Target: "https://operator.example.com/payout"},
	}
	transports := BuildTransports(specs, "", nil)
	if len(transports) != 1 {
		t.Fatalf("transports = %d, want 1", len(transports))
	}
	if transports[0].Kind() != ecash.TransportPost {
		t.Fatalf("kind = %s", transports[0].Kind())
	}
}
